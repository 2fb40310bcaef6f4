package motion

import (
	"fmt"
	"strings"

	"github.com/rotblauer/motiond/types/fix"
)

type State int

const (
	Stationary State = iota
	Moving
)

func (s State) String() string {
	switch s {
	case Stationary:
		return "Stationary"
	case Moving:
		return "Moving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	if s != Stationary && s != Moving {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState parses a state name, case-insensitively.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stationary", "":
		return Stationary, nil
	case "moving":
		return Moving, nil
	}
	return Stationary, fmt.Errorf("unknown state %q", s)
}

// Session is the mutable tracking state.
// TimerArmed is true exactly when State is Moving.
// LastAccepted is the reference for the distance filter; nil until the first
// accepted fix. LastReceived is the most recent well-formed fix, accepted or not.
type Session struct {
	State        State    `json:"state"`
	LastAccepted *fix.Fix `json:"lastAccepted,omitempty"`
	LastReceived *fix.Fix `json:"lastReceived,omitempty"`
	TimerArmed   bool     `json:"timerArmed"`
}

// Copy returns a deep copy of the session.
func (s Session) Copy() Session {
	cp := s
	if s.LastAccepted != nil {
		f := *s.LastAccepted
		cp.LastAccepted = &f
	}
	if s.LastReceived != nil {
		f := *s.LastReceived
		cp.LastReceived = &f
	}
	return cp
}

type Option func(m *Machine)

// WithInitialState sets the state the machine starts in.
// Starting Moving arms the stationary timer.
func WithInitialState(s State) Option {
	return func(m *Machine) {
		m.session.State = s
	}
}

// WithSession restores a previously persisted session.
// A restored Moving session arms a fresh stationary timer.
func WithSession(s Session) Option {
	return func(m *Machine) {
		m.session = s.Copy()
	}
}
