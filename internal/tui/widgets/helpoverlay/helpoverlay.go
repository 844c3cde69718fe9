package helpoverlay

import (
	"fmt"
	"strings"

	"tunnel/internal/tui/state"
)

type HelpOverlay struct{}

func NewHelpOverlay() HelpOverlay { return HelpOverlay{} }

// View returns grouped keys help. The stop entry changes once a stop is pending.
func (HelpOverlay) View(s state.UIState) string {
	stop := "q/Ctrl+C: stop session"
	if s.Stopping {
		stop = "q/Ctrl+C: stopping…"
	}
	sections := []struct {
		title string
		keys  []string
	}{
		{"Navigation", []string{"↑/↓ or k/j: select URL"}},
		{"Actions", []string{"c: copy selected URL", stop}},
		{"View", []string{"?: toggle this help"}},
	}
	var b strings.Builder
	b.WriteString("Help\n")
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n%s:\n", sec.title)
		for _, k := range sec.keys {
			fmt.Fprintf(&b, "  %s\n", k)
		}
	}
	return b.String()
}
