/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/catdb/flat"
	"github.com/rotblauer/motiond/common"
	"github.com/rotblauer/motiond/daemon/webd"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/metrics/influxdb"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/provider"
	"github.com/rotblauer/motiond/sink"
	"github.com/spf13/cobra"
)

var optSources []string
var optServeWeb bool

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track [file]",
	Short: "Track motion from a stream of fixes",
	Long: `Track reads location fixes from one or more sources and reports motion.

Sources (--source, repeatable):

  stdin    JSON fixes from stdin, or from [file] if given (.gz is decompressed).
           GeoJSON Features, FeatureCollections, or flat {"lat","lon","time"} objects,
           one per line or in an array.
  nmea     NMEA 0183 sentences from stdin, or [file].
  serial   NMEA 0183 sentences from --serial-port.
  mqtt     Fixes published by a device to <topic-prefix>/<name>/fixes.
           Cadence commands are published back to <topic-prefix>/<name>/cadence.

Stream sources can't be asked to sample less often, so while passive they
deliver at most one fix per --passive-interval.

Examples:

  zcat fixes.json.gz | motiond track --distance-threshold 250
  motiond track --source serial --serial-port /dev/ttyUSB0 --baud 4800 --web
  motiond track --source mqtt --mqtt.broker tcp://pi.local:1883 --mqtt.enabled
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		cfg := loadConfig()

		var providers provider.Multi
		var closers []io.Closer
		defer func() {
			for _, c := range closers {
				if err := c.Close(); err != nil {
					slog.Warn("Failed to close source", "error", err)
				}
			}
		}()

		input := func() io.Reader {
			if len(args) == 0 {
				return os.Stdin
			}
			r, err := openFixesFile(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			closers = append(closers, r)
			return r
		}

		for _, source := range optSources {
			switch source {
			case "stdin":
				providers = append(providers, provider.NewReader(input(), &cfg.Provider))
			case "nmea":
				providers = append(providers, provider.NewNMEA(input(), &cfg.Provider))
			case "serial":
				port, err := provider.OpenSerial(&cfg.Provider)
				if err != nil {
					log.Fatalln(err)
				}
				closers = append(closers, port)
				providers = append(providers, provider.NewNMEA(port, &cfg.Provider))
			case "mqtt":
				providers = append(providers, provider.NewMQTT(&cfg.MQTT, cfg.Tracker.Name))
			default:
				log.Fatalf("unknown source %q", source)
			}
		}
		if len(providers) == 0 {
			log.Fatalln("no source")
		}

		var p api.Provider = providers
		if len(providers) == 1 {
			p = providers[0]
		}
		if err := runTracker(cfg, p, runOptions{web: optServeWeb}); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().StringSliceVar(&optSources, "source", []string{"stdin"}, "Fix sources: stdin, nmea, serial, mqtt")
	trackCmd.Flags().BoolVar(&optServeWeb, "web", false, "Also serve the web daemon")
}

// openFixesFile opens a fixes file, decompressing .gz files.
func openFixesFile(path string) (io.ReadCloser, error) {
	if strings.HasSuffix(path, ".gz") {
		return flat.NewFlatGZReader(path)
	}
	return os.Open(path)
}

type runOptions struct {
	web         bool
	trackerOpts []api.TrackerOption
}

// runTracker runs a tracker over p with the configured sinks until p is
// exhausted (unless keep-alive) or the process is interrupted.
func runTracker(cfg *params.Config, p api.Provider, opts runOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		interrupt := common.Interrupted()
		select {
		case sig := <-interrupt:
			slog.Warn("Received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-interrupt
		log.Fatalln("Force exit", sig)
	}()

	p = provider.NewDedupe(p, cfg.Provider.DedupeSize)
	dedupe, _ := p.(*provider.Dedupe)

	lastKnown := cache.NewLastKnown()
	tracker, err := api.NewTracker(&cfg.Tracker, p, append([]api.TrackerOption{api.WithLastKnown(lastKnown)}, opts.trackerOpts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			slog.Error("Failed to close tracker", "error", err)
		}
	}()

	// Sinks run until ctx is done; they are canceled only after the tracker
	// returns, so that they see its last events.
	sinkCtx, cancelSinks := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSinks()
	var sinksDone []<-chan struct{}
	attach := func(s sink.Sink) {
		sinksDone = append(sinksDone, sink.Attach(sinkCtx, &tracker.EventFeed, s, params.DefaultBufferSize))
	}

	attach(sink.NewLogger(tracker.Name))

	if cfg.Notify {
		notifier := sink.NewNotifier(os.Stdout, func() params.FilterConfig {
			return tracker.Status().Filter
		})
		notifier.Detail = cfg.NotifyDetail
		attach(notifier)
		if cfg.NotifyDetail {
			sinksDone = append(sinksDone, sink.AttachFunc(sinkCtx, &tracker.ReceivedFeed, notifier.Received, params.DefaultBufferSize, nil))
		}
	}

	if store := tracker.Store(); store != nil {
		attach(&sink.Store{Store: store})
	}

	if cfg.Archive && cfg.Tracker.DataDir != "" {
		root := flat.NewFlatWithRoot(cfg.Tracker.DataDir).ForTracker(tracker.Name)
		archive, err := sink.NewArchive(root)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		sinksDone = append(sinksDone, sink.AttachFunc(sinkCtx, &tracker.ReceivedFeed, archive.Received, params.DefaultBufferSize, archive))
	}

	if cfg.MQTT.Enabled {
		publisher := sink.NewMQTTPublisher(&cfg.MQTT, tracker.Name)
		motionOnly := sink.Kinds(publisher, events.MotionStarted, events.MotionProgress, events.MotionStopped)
		sinksDone = append(sinksDone, sink.AttachFunc(sinkCtx, &tracker.EventFeed, motionOnly.Emit, params.DefaultBufferSize, publisher))
	}

	if cfg.InfluxDB.Enabled {
		attach(influxdb.NewExporter(&cfg.InfluxDB, tracker.Name))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := sink.NewPrometheus(reg, tracker.Name)
	if err != nil {
		return err
	}
	prom.SetState(tracker.Snapshot().State)
	attach(prom)

	webDone := make(chan error, 1)
	if opts.web {
		server, err := webd.NewWebDaemon(&cfg.Web, tracker,
			webd.WithLastKnown(lastKnown),
			webd.WithGatherer(reg))
		if err != nil {
			return err
		}
		go func() {
			webDone <- server.Run(ctx)
		}()
	} else {
		close(webDone)
	}

	runErr := tracker.Run(ctx)
	cancel()
	if err := <-webDone; err != nil {
		slog.Error("Web daemon failed", "error", err)
	}

	cancelSinks()
	for _, done := range sinksDone {
		<-done
	}

	st := tracker.Status()
	attrs := []any{"state", st.Session.State, "received", st.Received, "command-failures", st.CommandFailures}
	if dedupe != nil {
		attrs = append(attrs, "duplicates", dedupe.Dropped())
	}
	slog.Info("Tracker done", attrs...)
	return runErr
}
