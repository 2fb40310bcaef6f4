package webd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/common"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/provider"
	"github.com/rotblauer/motiond/sink"
	"github.com/rotblauer/motiond/timer"
)

var t0 = time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)

// newTestWebDaemon creates a WebDaemon serving a running tracker,
// with its feeds subscribed and an event store and prometheus sink attached.
// Everything is torn down by t.Cleanup.
func newTestWebDaemon(t *testing.T) *WebDaemon {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(slog.LevelWarn))

	cfg := params.DefaultTrackerConfig()
	cfg.Name = "test"
	cfg.DataDir = t.TempDir()
	cfg.MeterInterval = 0

	lastKnown := cache.NewLastKnown()
	tracker, err := api.NewTracker(cfg, &provider.Idle{},
		api.WithClock(timer.NewFakeClock(t0)),
		api.WithLastKnown(lastKnown))
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	prom, err := sink.NewPrometheus(reg, cfg.Name)
	if err != nil {
		t.Fatal(err)
	}

	d, err := NewWebDaemon(params.DefaultTestWebDaemonConfig(), tracker,
		WithLastKnown(lastKnown),
		WithGatherer(reg))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() { ran <- tracker.Run(ctx) }()
	stored := sink.Attach(ctx, &tracker.EventFeed, &sink.Store{Store: tracker.Store()}, params.DefaultBufferSize)
	counted := sink.Attach(ctx, &tracker.EventFeed, prom, params.DefaultBufferSize)
	subscribed := d.subscribe(ctx)

	t.Cleanup(func() {
		cancel()
		if err := <-ran; err != nil {
			t.Errorf("tracker: %v", err)
		}
		<-stored
		<-counted
		<-subscribed
		if err := tracker.Close(); err != nil {
			t.Error(err)
		}
	})
	return d
}

// waitFor polls cond until it holds or a few seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
