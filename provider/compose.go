package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/types/fix"
)

// Dedupe drops fixes already seen among the last size fixes,
// eg. MQTT QoS 1 redeliveries or RMC and GGA sentences for one epoch.
type Dedupe struct {
	api.Provider
	pass    func(fix.Fix) bool
	dropped atomic.Uint64
}

// NewDedupe wraps p. A size <= 0 returns p unwrapped.
func NewDedupe(p api.Provider, size int) api.Provider {
	if size <= 0 {
		return p
	}
	return &Dedupe{Provider: p, pass: cache.NewDedupePassLRUFunc(size)}
}

func (d *Dedupe) Run(ctx context.Context, deliver func(fix.Fix)) error {
	return d.Provider.Run(ctx, func(f fix.Fix) {
		if !d.pass(f) {
			d.dropped.Add(1)
			slog.Debug("Deduped fix", "fix", f)
			return
		}
		deliver(f)
	})
}

// Dropped returns the number of duplicates dropped.
func (d *Dedupe) Dropped() uint64 {
	return d.dropped.Load()
}

// Multi runs several providers at once. Cadence commands go to all of them.
// Run returns when every provider has returned; the first error wins.
type Multi []api.Provider

func (m Multi) Run(ctx context.Context, deliver func(fix.Fix)) error {
	var wg sync.WaitGroup
	errs := make([]error, len(m))
	// deliver is not required to be safe for concurrent use.
	var mu sync.Mutex
	serial := func(f fix.Fix) {
		mu.Lock()
		defer mu.Unlock()
		deliver(f)
	}
	for i, p := range m {
		wg.Add(1)
		go func(i int, p api.Provider) {
			defer wg.Done()
			errs[i] = p.Run(ctx, serial)
		}(i, p)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) SetCadence(ctx context.Context, c motion.Cadence) error {
	var errs []error
	for _, p := range m {
		if err := p.SetCadence(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Idle delivers nothing and runs until ctx is done.
// It stands in for sources that push fixes through Tracker.Deliver, like the web daemon.
type Idle struct {
	cadence atomic.Pointer[motion.Cadence]
}

func (p *Idle) Run(ctx context.Context, deliver func(fix.Fix)) error {
	<-ctx.Done()
	return nil
}

func (p *Idle) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.cadence.Store(&c)
	return nil
}

// Cadence returns the last commanded cadence, if any.
func (p *Idle) Cadence() (motion.Cadence, bool) {
	c := p.cadence.Load()
	if c == nil {
		return motion.Cadence{}, false
	}
	return *c, true
}
