package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/timer"
	"github.com/rotblauer/motiond/types/fix"
)

// Replay delivers recorded fixes against a FakeClock, moving the clock to each
// fix's observation time before delivering it, so stationary timeouts fire
// exactly when they would have live. Fixes must be in time order.
// The clock must be Synchronous for expiries to be ordered before the next fix.
type Replay struct {
	Fixes []fix.Fix
	Clock *timer.FakeClock
	// Tail advances the clock after the last fix, to let a pending timeout fire.
	Tail time.Duration

	cadences []motion.Cadence
}

func (p *Replay) Run(ctx context.Context, deliver func(fix.Fix)) error {
	for _, f := range p.Fixes {
		if ctx.Err() != nil {
			return nil
		}
		p.Clock.Set(f.ObservedAt)
		deliver(f)
	}
	if p.Tail > 0 {
		p.Clock.Advance(p.Tail)
	}
	slog.Debug("Replay done", "fixes", len(p.Fixes), "commands", len(p.cadences))
	return nil
}

// SetCadence records c. It is called from the tracker loop only.
func (p *Replay) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.cadences = append(p.cadences, c)
	return nil
}

// Cadences returns the commands received, in order.
func (p *Replay) Cadences() []motion.Cadence {
	return p.cadences
}
