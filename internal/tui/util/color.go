package util

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// NoColor returns true if color output should be disabled.
func NoColor(explicit bool) bool {
	if explicit {
		return true
	}
	return os.Getenv("NO_COLOR") != ""
}

// Palette defines a small set of colors used across widgets.
type Palette struct {
	Primary   lipgloss.Color
	Success   lipgloss.Color
	Danger    lipgloss.Color
	Warning   lipgloss.Color
	Muted     lipgloss.Color
	MutedDark lipgloss.Color
}

// DefaultPalette returns the default palette.
func DefaultPalette() Palette {
	return Palette{
		Primary:   lipgloss.Color("#3D6DFF"),
		Success:   lipgloss.Color("#2AA876"),
		Danger:    lipgloss.Color("#D9534F"),
		Warning:   lipgloss.Color("#F0AD4E"),
		Muted:     lipgloss.Color("#6C757D"),
		MutedDark: lipgloss.Color("#5A5A5A"),
	}
}

// Styles renders text with the palette, or verbatim when color is off.
type Styles struct {
	plain bool
	title lipgloss.Style
	url   lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
}

func NewStyles(noColor bool) Styles {
	p := DefaultPalette()
	return Styles{
		plain: noColor,
		title: lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		url:   lipgloss.NewStyle().Underline(true).Foreground(p.Success),
		ok:    lipgloss.NewStyle().Foreground(p.Success),
		warn:  lipgloss.NewStyle().Foreground(p.Warning),
		err:   lipgloss.NewStyle().Foreground(p.Danger),
		muted: lipgloss.NewStyle().Foreground(p.Muted),
	}
}

func (s Styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

func (s Styles) Title(text string) string { return s.render(s.title, text) }
func (s Styles) URL(text string) string   { return s.render(s.url, text) }
func (s Styles) OK(text string) string    { return s.render(s.ok, text) }
func (s Styles) Warn(text string) string  { return s.render(s.warn, text) }
func (s Styles) Err(text string) string   { return s.render(s.err, text) }
func (s Styles) Muted(text string) string { return s.render(s.muted, text) }
