// Package influxdb exports motion events to InfluxDB 2.
package influxdb

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/params"
)

// Exporter writes each event as a point through the async Write API,
// which buffers and flushes on its own.
type Exporter struct {
	tracker  string
	client   influxdb2.Client
	writeAPI api.WriteAPI

	wait    sync.WaitGroup
	mu      sync.Mutex
	lastErr error
}

func NewExporter(cfg *params.InfluxDBConfig, tracker string) *Exporter {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	e := &Exporter{
		tracker:  tracker,
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	// Errors must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := e.writeAPI.Errors()
	e.wait.Add(1)
	go func() {
		defer e.wait.Done()
		for err := range errorsCh {
			if err != nil {
				e.mu.Lock()
				e.lastErr = err
				e.mu.Unlock()
			}
		}
	}()
	return e
}

// EventPoint returns the point written for ev.
func EventPoint(tracker string, ev events.Event) *write.Point {
	p := influxdb2.NewPointWithMeasurement("motion").
		SetTime(ev.At).
		AddTag("tracker", tracker).
		AddTag("kind", ev.Kind.String()).
		AddField("distance", ev.DistanceMeters)
	if ev.Reason != events.NoReason {
		p.AddTag("reason", ev.Reason.String())
	}
	if ev.Fix != nil {
		p.AddField("latitude", ev.Fix.Latitude).
			AddField("longitude", ev.Fix.Longitude).
			AddField("lag_ms", ev.At.Sub(ev.Fix.ObservedAt).Milliseconds())
	}
	return p
}

// Emit queues ev for writing. Write failures surface from Close.
func (e *Exporter) Emit(ctx context.Context, ev events.Event) error {
	e.writeAPI.WritePoint(EventPoint(e.tracker, ev))
	return nil
}

// Close flushes pending points and returns the last write error encountered.
func (e *Exporter) Close() error {
	e.writeAPI.Flush()
	e.client.Close()
	e.wait.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}
