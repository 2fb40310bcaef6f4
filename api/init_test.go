package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rotblauer/motiond/common"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/timer"
	"github.com/rotblauer/motiond/types/fix"
)

var t0 = time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)

// chanProvider delivers whatever is sent on in, and records cadence commands.
type chanProvider struct {
	in      chan fix.Fix
	failSet error

	mu       sync.Mutex
	cadences []motion.Cadence
}

func newChanProvider() *chanProvider {
	return &chanProvider{in: make(chan fix.Fix)}
}

func (p *chanProvider) Run(ctx context.Context, deliver func(fix.Fix)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-p.in:
			if !ok {
				return nil
			}
			deliver(f)
		}
	}
}

func (p *chanProvider) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cadences = append(p.cadences, c)
	return p.failSet
}

func (p *chanProvider) Cadences() []motion.Cadence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]motion.Cadence{}, p.cadences...)
}

var errProviderBusy = errors.New("provider busy")

func testTrackerConfig(t *testing.T) *params.TrackerConfig {
	cfg := params.DefaultTrackerConfig()
	cfg.Name = "test"
	cfg.DataDir = t.TempDir()
	cfg.MeterInterval = 0
	cfg.KeepAlive = true
	cfg.Filter = params.FilterConfig{
		DistanceThresholdMeters:  500,
		DistanceFilterEnabled:    true,
		TimeWindowStartHour:      9,
		TimeWindowEndHour:        18,
		StationaryTimeoutSeconds: 60,
	}
	return cfg
}

type testTracker struct {
	*Tracker
	clock    *timer.FakeClock
	provider *chanProvider
	events   chan events.Event
	cancel   context.CancelFunc
	runErr   chan error
}

func startTestTracker(t *testing.T, cfg *params.TrackerConfig, opts ...TrackerOption) *testTracker {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(slog.LevelWarn))

	clock := timer.NewFakeClock(t0)
	p := newChanProvider()
	tr, err := NewTracker(cfg, p, append([]TrackerOption{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	tt := &testTracker{
		Tracker:  tr,
		clock:    clock,
		provider: p,
		events:   make(chan events.Event, 32),
		runErr:   make(chan error, 1),
	}
	sub := tr.EventFeed.Subscribe(tt.events)
	t.Cleanup(sub.Unsubscribe)

	ctx, cancel := context.WithCancel(context.Background())
	tt.cancel = cancel
	go func() { tt.runErr <- tr.Run(ctx) }()
	return tt
}

// stop cancels the tracker, waits for Run and closes the store.
func (tt *testTracker) stop(t *testing.T) {
	t.Helper()
	tt.cancel()
	select {
	case err := <-tt.runErr:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop")
	}
	if err := tt.Close(); err != nil {
		t.Error(err)
	}
}

func (tt *testTracker) send(t *testing.T, f fix.Fix) {
	t.Helper()
	select {
	case tt.provider.in <- f:
	case <-time.After(5 * time.Second):
		t.Fatal("provider did not take fix")
	}
}

func (tt *testTracker) expect(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	select {
	case ev := <-tt.events:
		if ev.Kind != kind {
			t.Fatalf("want %v, got %v", kind, ev)
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %v", kind)
	}
	return events.Event{}
}

func (tt *testTracker) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-tt.events:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
