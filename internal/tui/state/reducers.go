package state

import (
	"fmt"

	"tunnel/internal/session"
)

// ApplyEvent records a unit status change and any URLs it carried.
func ApplyEvent(s UIState, ev session.Event) UIState {
	units := make([]UnitView, len(s.Units))
	copy(units, s.Units)
	for i := range units {
		if units[i].Unit == ev.Unit {
			units[i].Status = ev.Status
			units[i].Detail = ev.Detail
		}
	}
	s.Units = units
	if len(ev.URLs) > 0 {
		s = AddURLs(s, ev.URLs)
	}
	if ev.Status == session.Failed {
		s.Notice = fmt.Sprintf("%s failed", ev.Unit)
	}
	return s
}

// AddURLs appends URLs not already shown, keeping first-seen order.
func AddURLs(s UIState, urls []string) UIState {
	out := append([]string(nil), s.URLs...)
	for _, u := range urls {
		dup := false
		for _, have := range out {
			if have == u {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, u)
		}
	}
	s.URLs = out
	return s
}

// MarkTimedOut notes that URL discovery gave up.
func MarkTimedOut(s UIState) UIState {
	s.TimedOut = true
	s.Notice = "Timeout reached, URL not found."
	return s
}

// SelectNext moves the URL cursor down, stopping at the last entry.
func SelectNext(s UIState) UIState {
	if s.Selected < len(s.URLs)-1 {
		s.Selected++
	}
	return s
}

// SelectPrev moves the URL cursor up, stopping at the first entry.
func SelectPrev(s UIState) UIState {
	if s.Selected > 0 {
		s.Selected--
	}
	return s
}

// SelectedURL returns the URL under the cursor.
func SelectedURL(s UIState) (string, bool) {
	if s.Selected < 0 || s.Selected >= len(s.URLs) {
		return "", false
	}
	return s.URLs[s.Selected], true
}

func ToggleHelp(s UIState) UIState {
	s.ShowHelp = !s.ShowHelp
	return s
}

func Resize(s UIState, width int) UIState {
	s.Width = width
	return s
}

// RequestStop flags the session as stopping and sets a notice.
func RequestStop(s UIState) UIState {
	s.Stopping = true
	s.Notice = "^C stopping…"
	return s
}

func SetNotice(s UIState, notice string) UIState {
	s.Notice = notice
	return s
}

// Done reports whether every unit has reached a terminal status.
func Done(s UIState) bool {
	for _, u := range s.Units {
		if !u.Status.Terminal() {
			return false
		}
	}
	return len(s.Units) > 0
}
