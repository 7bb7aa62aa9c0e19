package orchestrator

import "fmt"

// State is the lifecycle position of one invocation.
type State int

const (
	StateCreated State = iota
	StateSessionOpen
	StateRunning
	StatePassed
	StateFailed
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSessionOpen:
		return "session_open"
	case StateRunning:
		return "running"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool { return s == StateTornDown }

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateCreated:
		// A session that cannot be opened fails the invocation directly.
		return to == StateSessionOpen || to == StateFailed
	case StateSessionOpen:
		return to == StateRunning
	case StateRunning:
		return to == StatePassed || to == StateFailed
	case StatePassed, StateFailed:
		return to == StateTornDown
	default:
		return false
	}
}

// TransitionFunc observes validated state changes.
type TransitionFunc func(invocationID string, from, to State)

// lifecycle tracks one invocation's state. It is owned by a single goroutine.
type lifecycle struct {
	id      string
	state   State
	observe TransitionFunc
}

func newLifecycle(id string, observe TransitionFunc) *lifecycle {
	return &lifecycle{id: id, state: StateCreated, observe: observe}
}

// transition moves from -> to. The expected prior state makes ordering bugs
// observable instead of silently overwriting.
func (l *lifecycle) transition(from, to State) error {
	if l.state != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", l.id, from, l.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", l.id, from, to)
	}
	l.state = to
	if l.observe != nil {
		l.observe(l.id, from, to)
	}
	return nil
}
