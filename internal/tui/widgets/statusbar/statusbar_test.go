package statusbar

import (
	"strings"
	"testing"

	"tunnel/internal/session"
	"tunnel/internal/tui/state"
)

func TestViewListsUnitsAndNotice(t *testing.T) {
	s := state.New()
	s = state.ApplyEvent(s, session.Event{Unit: session.UnitApp, Status: session.Running})
	s = state.SetNotice(s, "copied")
	out := NewStatusBar().View(s)
	for _, want := range []string{"[app: running]", "[tunnel: pending]", "[scrape: pending]", "URLs:0", "copied"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status bar: %s", want, out)
		}
	}
}
