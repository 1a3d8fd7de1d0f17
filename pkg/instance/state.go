package instance

// State is the lifecycle state of an instance, stored as a string in its
// "state" leaf.
type State string

const (
	StateNull    State = "null"
	StateStopped State = "stopped"
	StateStarted State = "started"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Valid reports whether s is a lifecycle state
func (s State) Valid() bool {
	switch s {
	case StateNull, StateStopped, StateStarted, StateRunning, StatePaused:
		return true
	default:
		return false
	}
}

func (s State) String() string { return string(s) }

// Transition is one legal lifecycle change
type Transition struct {
	Name string
	From State
	To   State
}

var transitions = []Transition{
	{Name: "create", From: StateNull, To: StateStopped},
	{Name: "start", From: StateStopped, To: StateStarted},
	{Name: "connect", From: StateStarted, To: StateRunning},
	{Name: "pause", From: StateRunning, To: StatePaused},
	{Name: "resume", From: StatePaused, To: StateRunning},
	{Name: "disconnect", From: StateRunning, To: StateStarted},
	{Name: "stop", From: StateStarted, To: StateStopped},
	{Name: "destroy", From: StateStopped, To: StateNull},
}

// Transitions returns the transition table
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// LookupTransition returns the transition from one state to another
func LookupTransition(from, to State) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}
