package api

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/state"
	"github.com/rotblauer/motiond/types/fix"
)

func TestTracker_StartProgressStop(t *testing.T) {
	lk := cache.NewLastKnown()
	tt := startTestTracker(t, testTrackerConfig(t), WithLastKnown(lk))
	defer tt.stop(t)

	tt.send(t, fix.New(0, 0, t0))
	tt.expect(t, events.MotionStarted)

	tt.send(t, fix.New(0, 0.001, t0.Add(10*time.Second)))
	rej := tt.expect(t, events.FixRejected)
	if rej.Reason != events.InsufficientDistance {
		t.Fatalf("want InsufficientDistance, got %v", rej.Reason)
	}

	tt.send(t, fix.New(0, 0.01, t0.Add(20*time.Second)))
	tt.expect(t, events.MotionProgress)

	tt.clock.Advance(time.Minute)
	stopped := tt.expect(t, events.MotionStopped)
	if stopped.Fix == nil || stopped.Fix.Longitude != 0.01 {
		t.Errorf("stopped should carry last received fix: %v", stopped.Fix)
	}
	tt.expectNone(t)

	want := []motion.Cadence{motion.CadencePassive, motion.CadenceFrequent, motion.CadencePassive}
	if got := tt.provider.Cadences(); !slices.Equal(want, got) {
		t.Errorf("cadences: want %v, got %v", want, got)
	}
	if got, ok := lk.Get("test"); !ok || got.Longitude != 0.01 {
		t.Errorf("last known: %v %v", got, ok)
	}

	st := tt.Status()
	if st.Received != 3 || st.Session.State != motion.Stationary || st.Cadence != motion.CadencePassive {
		t.Errorf("status: %+v", st)
	}
}

func TestTracker_TimerRearmedByProgress(t *testing.T) {
	tt := startTestTracker(t, testTrackerConfig(t))
	defer tt.stop(t)

	tt.send(t, fix.New(0, 0, t0))
	tt.expect(t, events.MotionStarted)
	tt.clock.Advance(50 * time.Second)
	tt.send(t, fix.New(0, 0.01, t0.Add(50*time.Second)))
	tt.expect(t, events.MotionProgress)

	tt.clock.Advance(50 * time.Second)
	tt.expectNone(t)
	tt.clock.Advance(10 * time.Second)
	tt.expect(t, events.MotionStopped)
}

func TestTracker_CommandFailureIsNotAnEvent(t *testing.T) {
	cfg := testTrackerConfig(t)
	tt := startTestTracker(t, cfg)
	defer tt.stop(t)
	tt.provider.mu.Lock()
	tt.provider.failSet = errProviderBusy
	tt.provider.mu.Unlock()

	tt.send(t, fix.New(0, 0, t0))
	tt.expect(t, events.MotionStarted)
	tt.expectNone(t)

	if st := tt.Status(); st.CommandFailures == 0 || st.Session.State != motion.Moving {
		t.Errorf("want counted failure and Moving, got %+v", st)
	}
}

func TestTracker_PersistsAndRestores(t *testing.T) {
	cfg := testTrackerConfig(t)
	tt := startTestTracker(t, cfg)
	tt.send(t, fix.New(0, 0, t0))
	tt.expect(t, events.MotionStarted)
	tt.stop(t)
	if st := tt.Status(); st.Session.State != motion.Moving || st.Session.TimerArmed {
		t.Errorf("stopped tracker status: %+v", st.Session)
	}

	s, err := state.Open(cfg.StateDBPath(), true)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := s.ReadSession()
	s.Close()
	if err != nil {
		t.Fatal(err)
	}
	if sess.State != motion.Moving || sess.LastAccepted == nil {
		t.Fatalf("persisted session: %+v", sess)
	}

	// A restored Moving session gets a fresh timer.
	tt = startTestTracker(t, cfg)
	defer tt.stop(t)
	if got := tt.Snapshot(); got.State != motion.Moving || !got.TimerArmed {
		t.Fatalf("restored session: %+v", got)
	}
	tt.clock.Advance(time.Minute)
	tt.expect(t, events.MotionStopped)
}

func TestTracker_ProviderEnds(t *testing.T) {
	cfg := testTrackerConfig(t)
	cfg.KeepAlive = false
	tt := startTestTracker(t, cfg)
	tt.send(t, fix.New(0, 0, t0))
	tt.expect(t, events.MotionStarted)
	close(tt.provider.in)
	select {
	case err := <-tt.runErr:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tracker should return when its provider does")
	}
	tt.cancel()
	tt.Close()
}

func TestNewTracker_InvalidConfig(t *testing.T) {
	cfg := testTrackerConfig(t)
	cfg.InitialState = "sleepy"
	if _, err := NewTracker(cfg, newChanProvider()); !errors.Is(err, params.ErrInvalidConfig) {
		t.Errorf("want ErrInvalidConfig, got %v", err)
	}
	cfg = testTrackerConfig(t)
	cfg.Filter.TimeWindowEndHour = 24
	if _, err := NewTracker(cfg, newChanProvider()); !errors.Is(err, params.ErrInvalidConfig) {
		t.Errorf("want ErrInvalidConfig, got %v", err)
	}
}
