package timer

import (
	"sync"
	"time"
)

// Token identifies one Arm call. Tokens increase monotonically per timer;
// the zero Token is never issued.
type Token uint64

// Stationary is a cancelable single-shot delay.
// Re-arming cancels the pending schedule and restarts the countdown from zero.
// Each Arm produces exactly one onExpire call unless it is canceled or superseded first.
type Stationary struct {
	clock Clock

	mu      sync.Mutex
	gen     Token
	armed   bool
	stopper Stopper
}

func NewStationary(clock Clock) *Stationary {
	if clock == nil {
		clock = RealClock{}
	}
	return &Stationary{clock: clock}
}

// Arm (re)schedules onExpire to run after d and returns the schedule's token,
// which is also passed to onExpire.
func (s *Stationary) Arm(d time.Duration, onExpire func(Token)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.gen++
	tok := s.gen
	s.armed = true
	s.stopper = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		// A cancel or re-arm may have raced the runtime timer; the generation decides.
		if !s.armed || s.gen != tok {
			s.mu.Unlock()
			return
		}
		s.armed = false
		s.stopper = nil
		s.mu.Unlock()
		onExpire(tok)
	})
	return tok
}

// Cancel prevents the pending onExpire from running. Canceling an unarmed timer is a no-op.
func (s *Stationary) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Stationary) cancelLocked() {
	if !s.armed {
		return
	}
	s.stopper.Stop()
	s.stopper = nil
	s.armed = false
	// Invalidate the token even if Stop lost the race with the callback.
	s.gen++
}

// Armed reports whether a schedule is pending.
func (s *Stationary) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Current returns the token of the pending schedule, or 0 when unarmed.
func (s *Stationary) Current() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return 0
	}
	return s.gen
}

func (s *Stationary) Clock() Clock {
	return s.clock
}
