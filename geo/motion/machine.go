// Package motion decides whether the subject is stationary or moving,
// and which location cadence the provider should run at.
//
// The Machine is driven by two inputs: fixes and stationary timer expiries.
// It never performs I/O; the host dispatches the Result of each input.
package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/timer"
	"github.com/rotblauer/motiond/types/fix"
)

// Result is what the host must do after an input.
// Events are in emission order. Command is nil when the cadence is unchanged.
type Result struct {
	Events  []events.Event
	Command *Cadence
}

func (r Result) IsZero() bool {
	return len(r.Events) == 0 && r.Command == nil
}

type Machine struct {
	mu       sync.Mutex
	cfg      params.FilterConfig
	timer    *timer.Stationary
	onExpire func(timer.Token)

	// zone is cfg's loaded TimeZone.
	zone *time.Location

	session Session
	// token is the generation of the live stationary timer schedule.
	token timer.Token
}

// New returns a Machine using t for the stationary timeout.
// onExpire is handed to the timer and runs on the clock's goroutine;
// it should forward the token to the host, which then calls OnStationaryTimeout.
func New(cfg params.FilterConfig, t *timer.Stationary, onExpire func(timer.Token), opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		t = timer.NewStationary(nil)
	}
	if onExpire == nil {
		return nil, fmt.Errorf("motion: nil expiry handler")
	}
	zone, _ := cfg.Zone()
	m := &Machine{
		cfg:      cfg,
		zone:     zone,
		timer:    t,
		onExpire: onExpire,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session.TimerArmed = false
	if m.session.State == Moving {
		m.arm()
	}
	return m, nil
}

func (m *Machine) arm() {
	m.token = m.timer.Arm(m.cfg.StationaryTimeout(), m.onExpire)
	m.session.TimerArmed = true
}

// OnFixReceived runs a fix through the filters and transitions.
func (m *Machine) OnFixReceived(f fix.Fix) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timer.Clock().Now()
	if err := f.Validate(); err != nil {
		return Result{Events: []events.Event{events.Rejected(f, events.Malformed, now)}}
	}

	received := f
	m.session.LastReceived = &received

	if !IsPermitted(HourOf(f.ObservedAt, m.zone), m.cfg.TimeWindowStartHour, m.cfg.TimeWindowEndHour, m.cfg.TimeWindowEnabled) {
		return Result{Events: []events.Event{events.Rejected(f, events.OutOfTimeWindow, now)}}
	}

	significant, meters := IsSignificant(m.session.LastAccepted, f, m.cfg.DistanceThresholdMeters, m.cfg.DistanceFilterEnabled)
	if !significant {
		ev := events.Rejected(f, events.InsufficientDistance, now)
		ev.DistanceMeters = meters
		return Result{Events: []events.Event{ev}}
	}

	accepted := f
	m.session.LastAccepted = &accepted
	m.arm()

	switch m.session.State {
	case Stationary:
		m.session.State = Moving
		cmd := CadenceFrequent
		return Result{
			Events:  []events.Event{events.Started(f, meters, now)},
			Command: &cmd,
		}
	default:
		return Result{Events: []events.Event{events.Progress(f, meters, now)}}
	}
}

// OnStationaryTimeout handles an expiry of the schedule identified by tok.
// Expiries for superseded or canceled schedules, or arriving while
// Stationary, are ignored.
func (m *Machine) OnStationaryTimeout(tok timer.Token) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.State != Moving || !m.session.TimerArmed || tok != m.token {
		return Result{}
	}
	m.session.State = Stationary
	m.session.TimerArmed = false
	m.token = 0
	if m.session.LastReceived != nil {
		last := *m.session.LastReceived
		m.session.LastAccepted = &last
	}
	cmd := CadencePassive
	return Result{
		Events:  []events.Event{events.Stopped(m.session.LastReceived, m.timer.Clock().Now())},
		Command: &cmd,
	}
}

// Reconfigure replaces the filter configuration.
// A pending stationary timeout keeps its original duration.
func (m *Machine) Reconfigure(cfg params.FilterConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	zone, _ := cfg.Zone()
	m.mu.Lock()
	m.cfg = cfg
	m.zone = zone
	m.mu.Unlock()
	return nil
}

func (m *Machine) Config() params.FilterConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Snapshot returns a copy of the session.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Copy()
}

// Token returns the generation of the live timer schedule, or 0 when none is armed.
func (m *Machine) Token() timer.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Stop cancels the stationary timer. The state is left as is,
// so a persisted Moving session resumes with a fresh timer.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timer.Cancel()
	m.token = 0
	m.session.TimerArmed = false
}
