package statusbar

import (
	"fmt"
	"strings"

	"tunnel/internal/tui/state"
)

type StatusBar struct{}

func NewStatusBar() StatusBar { return StatusBar{} }

// View composes a concise status line reflecting key UI state.
func (StatusBar) View(s state.UIState) string {
	parts := make([]string, 0, len(s.Units)+3)
	for _, u := range s.Units {
		parts = append(parts, fmt.Sprintf("[%s: %s]", u.Unit, u.Status))
	}
	parts = append(parts, fmt.Sprintf("URLs:%d", len(s.URLs)))
	if s.Width > 0 {
		parts = append(parts, fmt.Sprintf("W:%d", s.Width))
	}
	if s.Notice != "" {
		parts = append(parts, s.Notice)
	}
	return strings.Join(parts, "  ")
}
