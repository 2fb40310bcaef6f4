package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/state"
	"github.com/rotblauer/motiond/timer"
	"github.com/rotblauer/motiond/types/fix"
)

var ErrTrackerStopped = errors.New("tracker stopped")

// Provider is a location source.
// Run delivers fixes until ctx is done or the source is exhausted.
// SetCadence asks the source to change its sampling regime;
// it may be called concurrently with Run.
type Provider interface {
	Run(ctx context.Context, deliver func(fix.Fix)) error
	SetCadence(ctx context.Context, c motion.Cadence) error
}

// Tracker hosts one motion.Machine. It is the only goroutine that drives
// the machine: fix deliveries and timer expiries are handled one at a time,
// and each Result is dispatched before the next input is read.
type Tracker struct {
	Name string

	config    *params.TrackerConfig
	provider  Provider
	clock     timer.Clock
	machine   *motion.Machine
	store     *state.Store
	lastKnown *cache.LastKnown
	logger    *slog.Logger

	fixes    chan delivery
	expiries chan timer.Token
	done     chan struct{}
	running  atomic.Bool

	// EventFeed carries every reportable event.
	EventFeed events.Feed
	// CadenceFeed carries every cadence command sent to the provider.
	CadenceFeed event.FeedOf[motion.Cadence]
	// ReceivedFeed carries fixes as they were delivered, before filtering.
	ReceivedFeed events.FixFeed

	mu       sync.Mutex
	cadence  motion.Cadence
	started  time.Time
	received atomic.Uint64
	failures atomic.Uint64
	meter    *tickMeter
}

type TrackerOption func(t *Tracker)

// WithClock sets the clock the stationary timer runs on.
func WithClock(c timer.Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithStore persists the session to s instead of the config's data dir.
func WithStore(s *state.Store) TrackerOption {
	return func(t *Tracker) {
		t.store = s
	}
}

// WithLastKnown records every received fix in c.
func WithLastKnown(c *cache.LastKnown) TrackerOption {
	return func(t *Tracker) {
		t.lastKnown = c
	}
}

func NewTracker(cfg *params.TrackerConfig, provider Provider, opts ...TrackerOption) (*Tracker, error) {
	if cfg == nil {
		cfg = params.DefaultTrackerConfig()
	}
	if provider == nil {
		return nil, fmt.Errorf("tracker %q: nil provider", cfg.Name)
	}
	if err := cfg.Filter.Validate(); err != nil {
		return nil, err
	}
	initial, err := motion.ParseState(cfg.InitialState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", params.ErrInvalidConfig, err)
	}

	t := &Tracker{
		Name:     cfg.Name,
		config:   cfg,
		provider: provider,
		clock:    timer.RealClock{},
		logger:   slog.With("tracker", cfg.Name),
		fixes:    make(chan delivery),
		expiries: make(chan timer.Token, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.store == nil && cfg.StateDBPath() != "" {
		t.store, err = state.Open(cfg.StateDBPath(), false)
		if err != nil {
			return nil, err
		}
	}

	machineOpts := []motion.Option{motion.WithInitialState(initial)}
	if t.store != nil {
		sess, err := t.store.ReadSession()
		switch {
		case err == nil:
			t.logger.Info("Restored session", "state", sess.State, "accepted", sess.LastAccepted)
			machineOpts = append(machineOpts, motion.WithSession(sess))
		case errors.Is(err, state.ErrNoSnapshot):
			t.logger.Debug("No persisted session")
		default:
			t.logger.Warn("Failed to read persisted session", "error", err)
		}
	}

	t.machine, err = motion.New(cfg.Filter, timer.NewStationary(t.clock), t.onExpire, machineOpts...)
	if err != nil {
		return nil, err
	}
	t.cadence = cadenceFor(t.machine.Snapshot().State)
	return t, nil
}

func cadenceFor(s motion.State) motion.Cadence {
	if s == motion.Moving {
		return motion.CadenceFrequent
	}
	return motion.CadencePassive
}

// onExpire runs on the clock's goroutine. It only forwards the token;
// the machine decides whether the expiry is still current.
func (t *Tracker) onExpire(tok timer.Token) {
	select {
	case t.expiries <- tok:
	case <-t.done:
	}
}

type delivery struct {
	f    fix.Fix
	done chan struct{}
}

// Deliver hands f to the tracker loop and blocks until it has been processed,
// its events sent and any cadence command issued.
func (t *Tracker) Deliver(ctx context.Context, f fix.Fix) error {
	d := delivery{f: f, done: make(chan struct{})}
	select {
	case t.fixes <- d:
	case <-t.done:
		return ErrTrackerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.done:
		return nil
	case <-t.done:
		return ErrTrackerStopped
	}
}

// Run runs the provider and the tracker loop.
// It returns when ctx is done, or when the provider returns unless KeepAlive is set.
// A tracker can be run only once.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("tracker %q already ran", t.Name)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(t.done)
	defer t.machine.Stop()

	t.mu.Lock()
	t.started = t.clock.Now()
	t.mu.Unlock()

	if t.config.MeterInterval > 0 {
		t.meter = newTickMeter(t.Name, t.config.MeterInterval)
		defer t.meter.stop()
	}

	t.logger.Info("Tracker running",
		"state", t.machine.Snapshot().State,
		"threshold", t.config.Filter.DistanceThresholdMeters,
		"timeout", t.config.Filter.StationaryTimeout())

	// Tell the provider where to start.
	t.command(ctx, t.Cadence())

	providerDone := make(chan error, 1)
	go func() {
		providerDone <- t.provider.Run(ctx, func(f fix.Fix) {
			if err := t.Deliver(ctx, f); err != nil {
				t.logger.Debug("Dropped fix", "fix", f, "error", err)
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Tracker stopping", "reason", ctx.Err())
			return nil
		case d := <-t.fixes:
			// An expiry that fired before this fix arrived is handled first.
			t.drainExpiries(ctx)
			t.receive(ctx, d.f)
			close(d.done)
		case tok := <-t.expiries:
			t.expire(ctx, tok)
		case err := <-providerDone:
			t.drainExpiries(ctx)
			if err != nil {
				t.logger.Error("Provider failed", "error", err)
				return err
			}
			if !t.config.KeepAlive {
				t.logger.Info("Provider done", "received", t.received.Load())
				return nil
			}
			t.logger.Info("Provider done, keeping alive", "received", t.received.Load())
			providerDone = nil
		}
	}
}

func (t *Tracker) receive(ctx context.Context, f fix.Fix) {
	t.received.Add(1)
	t.ReceivedFeed.Send(f)
	if t.meter != nil {
		t.meter.mark(f)
	}
	res := t.machine.OnFixReceived(f)
	if t.lastKnown != nil && res.Events[0].Reason != events.Malformed {
		t.lastKnown.Set(t.Name, f)
	}
	t.dispatch(ctx, res)
}

func (t *Tracker) expire(ctx context.Context, tok timer.Token) {
	res := t.machine.OnStationaryTimeout(tok)
	if res.IsZero() {
		t.logger.Debug("Ignored stale stationary timeout", "token", tok)
		return
	}
	t.dispatch(ctx, res)
}

func (t *Tracker) drainExpiries(ctx context.Context) {
	for {
		select {
		case tok := <-t.expiries:
			t.expire(ctx, tok)
		default:
			return
		}
	}
}

func (t *Tracker) dispatch(ctx context.Context, res motion.Result) {
	if res.Command != nil {
		t.command(ctx, *res.Command)
	}
	for _, ev := range res.Events {
		t.EventFeed.Send(ev)
	}
	t.persist()
}

// command forwards c to the provider. A provider failure is logged and counted;
// the machine's transition stands regardless.
func (t *Tracker) command(ctx context.Context, c motion.Cadence) {
	t.mu.Lock()
	t.cadence = c
	t.mu.Unlock()
	if err := t.provider.SetCadence(ctx, c); err != nil {
		t.failures.Add(1)
		t.logger.Error("Failed to set provider cadence", "cadence", c, "error", err)
	} else {
		t.logger.Debug("Set provider cadence", "cadence", c)
	}
	t.CadenceFeed.Send(c)
}

func (t *Tracker) persist() {
	if t.store == nil {
		return
	}
	if err := t.store.StoreSession(t.machine.Snapshot()); err != nil {
		t.logger.Error("Failed to persist session", "error", err)
	}
}

// Reconfigure replaces the filter configuration of a running or idle tracker.
func (t *Tracker) Reconfigure(cfg params.FilterConfig) error {
	if err := t.machine.Reconfigure(cfg); err != nil {
		return err
	}
	t.logger.Info("Reconfigured filters", "config", cfg)
	return nil
}

// Snapshot returns a copy of the tracking session.
func (t *Tracker) Snapshot() motion.Session {
	return t.machine.Snapshot()
}

func (t *Tracker) Cadence() motion.Cadence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cadence
}

// Store returns the tracker's state store, or nil without persistence.
func (t *Tracker) Store() *state.Store {
	return t.store
}

// Status is a point-in-time summary of a tracker, as served by the web daemon.
type Status struct {
	Name            string              `json:"name"`
	Session         motion.Session      `json:"session"`
	Cadence         motion.Cadence      `json:"cadence"`
	Filter          params.FilterConfig `json:"filter"`
	Started         time.Time           `json:"started"`
	Uptime          string              `json:"uptime"`
	Received        uint64              `json:"received"`
	CommandFailures uint64              `json:"commandFailures"`
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	started := t.started
	cadence := t.cadence
	t.mu.Unlock()
	st := Status{
		Name:            t.Name,
		Session:         t.machine.Snapshot(),
		Cadence:         cadence,
		Filter:          t.machine.Config(),
		Started:         started,
		Received:        t.received.Load(),
		CommandFailures: t.failures.Load(),
	}
	if !started.IsZero() {
		st.Uptime = t.clock.Now().Sub(started).Round(time.Second).String()
	}
	return st
}

// Close releases the state store. Call it after Run returns.
func (t *Tracker) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}
