package state

import "tunnel/internal/session"

// UnitView is what the watch view knows about one session unit.
type UnitView struct {
	Unit   session.Unit
	Status session.Status
	Detail string
}

// UIState holds everything the watch view renders.
type UIState struct {
	Units    []UnitView
	URLs     []string
	Selected int

	// Layout
	Width    int
	ShowHelp bool

	// Set once a stop was requested from the keyboard.
	Stopping bool
	TimedOut bool

	// Notices and ephemeral messages
	Notice string
}

// New returns a state with every unit pending.
func New() UIState {
	units := make([]UnitView, 0, len(session.Units))
	for _, u := range session.Units {
		units = append(units, UnitView{Unit: u, Status: session.Pending})
	}
	return UIState{Units: units}
}
