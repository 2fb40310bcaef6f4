// Package provider holds the location sources a tracker can run on.
package provider

import (
	"sync"
	"time"

	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/types/fix"
)

// Throttle realizes a cadence for sources that can't be reconfigured,
// like a file or a GPS that always reports at 1Hz.
// In Passive mode at most one fix per interval passes, measured on observation time.
// Frequent passes everything.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	mode     motion.Mode
	last     time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, mode: motion.Passive}
}

func (t *Throttle) SetCadence(c motion.Cadence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = c.Mode
}

func (t *Throttle) Mode() motion.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Pass reports whether f should be delivered.
func (t *Throttle) Pass(f fix.Fix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == motion.Frequent || t.interval <= 0 || t.last.IsZero() ||
		f.ObservedAt.Sub(t.last) >= t.interval || f.ObservedAt.Before(t.last) {
		t.last = f.ObservedAt
		return true
	}
	return false
}
