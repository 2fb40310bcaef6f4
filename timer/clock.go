// Package timer provides the single-shot, cancelable stationary timer
// and the clock it schedules on.
package timer

import (
	"sort"
	"sync"
	"time"
)

// Stopper cancels a scheduled callback.
// Stop reports whether the call stopped the callback before it ran.
type Stopper interface {
	Stop() bool
}

// Clock is the scheduling service timers run on.
// Callbacks run on a goroutine owned by the clock, never on the caller's stack.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealClock schedules on the runtime's timers.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// FakeClock is a manually advanced clock for tests and replays.
// Due callbacks fire in deadline order from Advance, each on its own goroutine
// unless Synchronous is set.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeTimer

	// Synchronous runs callbacks inline within Advance.
	// Callers must not hold locks the callbacks need.
	Synchronous bool
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int
	f        func()
	stopped  bool
	fired    bool
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the number of scheduled callbacks that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and fires every callback due by then.
// It returns the number of callbacks fired.
func (c *FakeClock) Advance(d time.Duration) int {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, keep []*fakeTimer
	for _, t := range c.pending {
		switch {
		case t.stopped || t.fired:
		case !t.deadline.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.pending = keep
	inline := c.Synchronous
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		if inline {
			t.f()
		} else {
			go t.f()
		}
	}
	return len(due)
}

// Set moves the clock to t, firing callbacks due by then. Moving backwards is a no-op.
func (c *FakeClock) Set(t time.Time) int {
	d := t.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return c.Advance(d)
}
