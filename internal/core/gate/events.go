package gate

import (
	"time"

	"productivityguard/internal/core/model"
)

// State represents the current page mode.
type State string

const (
	StateIdle        State = "idle"
	StateUncommitted State = "uncommitted"
	StateActive      State = "committed_active"
	StateExpired     State = "expired"
	StateClosed      State = "closed"
)

// transitions lists the states each state may move to. A page re-enters
// StateActive when another page commits again; StateClosed is final.
var transitions = map[State][]State{
	StateIdle:        {StateUncommitted, StateActive},
	StateUncommitted: {StateActive, StateClosed},
	StateActive:      {StateActive, StateUncommitted, StateExpired, StateClosed},
	StateExpired:     {StateActive, StateUncommitted, StateClosed},
	StateClosed:      {},
}

// CanTransition reports whether a page in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EventType defines the type of Controller event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventProgress    EventType = "progress"
	EventError       EventType = "error"
)

// Cause names what drove a transition.
type Cause string

const (
	CauseLoad      Cause = "load"
	CauseConfirm   Cause = "confirm"
	CauseStorage   Cause = "storage"
	CauseBroadcast Cause = "broadcast"
	CauseCountdown Cause = "countdown"
	CauseDecline   Cause = "decline"
	CauseAck       Cause = "acknowledge"
)

// Event represents a Controller update for observers.
type Event struct {
	Type      EventType
	State     State
	Cause     Cause
	Record    model.TimerRecord
	Remaining time.Duration
	Label     string
	Message   string
	At        time.Time
}
