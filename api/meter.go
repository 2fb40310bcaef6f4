package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/motiond/common"
	"github.com/rotblauer/motiond/types/fix"
)

// tickMeter periodically logs the received-fix rate of a tracker.
type tickMeter struct {
	name     string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	quit     chan struct{}

	mu    sync.Mutex
	label time.Time // observation time of the last fix

	reg   metrics.Registry
	count metrics.Counter
	meter metrics.Meter
}

func newTickMeter(name string, interval time.Duration) *tickMeter {
	// The metrics package is a no-op until enabled.
	metrics.Enabled = true

	tm := &tickMeter{
		name:     name,
		interval: interval,
		started:  time.Now(),
		quit:     make(chan struct{}),
		reg:      metrics.NewRegistry(),
		count:    metrics.NewCounter(),
		meter:    metrics.NewMeter(),
	}
	if err := tm.reg.Register("fixes.count", tm.count); err != nil {
		panic(err)
	}
	if err := tm.reg.Register("fixes.meter", tm.meter); err != nil {
		panic(err)
	}
	tm.ticker = time.NewTicker(interval)
	go tm.run()
	return tm
}

func (tm *tickMeter) mark(f fix.Fix) {
	tm.mu.Lock()
	tm.label = f.ObservedAt
	tm.mu.Unlock()
	tm.count.Inc(1)
	tm.meter.Mark(1)
}

func (tm *tickMeter) run() {
	for {
		select {
		case <-tm.ticker.C:
			tm.log()
		case <-tm.quit:
			return
		}
	}
}

func (tm *tickMeter) log() {
	snap := tm.meter.Snapshot()
	tm.mu.Lock()
	last := tm.label
	tm.mu.Unlock()
	lastStr := "never"
	if !last.IsZero() {
		lastStr = humanize.Time(last)
	}
	slog.Info("Received fixes",
		"tracker", tm.name,
		"n", humanize.Comma(tm.count.Snapshot().Count()),
		"last", lastStr,
		"fpm", common.DecimalToFixed(snap.Rate1()*60, 2),
		"running", time.Since(tm.started).Round(time.Second))
}

func (tm *tickMeter) stop() {
	if tm == nil {
		return
	}
	tm.ticker.Stop()
	close(tm.quit)
	tm.meter.Stop()
}
