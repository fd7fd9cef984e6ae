package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrIllegalTransition is returned when a turn is moved along an edge it does not have
var ErrIllegalTransition = errors.New("illegal turn transition")

// State is a turn's position in its lifecycle
type State int

const (
	StateIdle State = iota
	StateResolving
	StateSubmitting
	StateRendering
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateSubmitting:
		return "submitting"
	case StateRendering:
		return "rendering"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:       {StateResolving},
	StateResolving:  {StateSubmitting, StateFailed},
	StateSubmitting: {StateRendering, StateFailed},
	StateRendering:  {StateDone},
}

// Turn tracks one message's trip through the relay
type Turn struct {
	ID          string
	Participant string
	SessionID   string
	Started     time.Time

	state State
}

// NewTurn starts an idle turn with a fresh id
func NewTurn(participant string) *Turn {
	return &Turn{
		ID:          uuid.NewString(),
		Participant: participant,
		Started:     time.Now(),
		state:       StateIdle,
	}
}

// State returns the current state
func (t *Turn) State() State {
	return t.state
}

// Advance moves the turn to next
func (t *Turn) Advance(next State) error {
	if t.state.Terminal() {
		return fmt.Errorf("%w: turn already %s", ErrIllegalTransition, t.state)
	}
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			t.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.state, next)
}

// Elapsed is the time since the turn started
func (t *Turn) Elapsed() time.Duration {
	return time.Since(t.Started)
}
