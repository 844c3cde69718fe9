package session

import "time"

// Unit names one of the three concurrent pieces of a session.
type Unit string

const (
	UnitApp    Unit = "app"
	UnitTunnel Unit = "tunnel"
	UnitScrape Unit = "scrape"
)

// Units lists the units in display order.
var Units = []Unit{UnitApp, UnitTunnel, UnitScrape}

type Status int

const (
	Pending Status = iota
	Running
	Succeeded
	Failed
	Stopped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "done"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the unit has finished.
func (s Status) Terminal() bool { return s >= Succeeded }

// Event is a unit status change.
type Event struct {
	Unit   Unit
	Status Status
	Detail string
	URLs   []string
	At     time.Time
}
