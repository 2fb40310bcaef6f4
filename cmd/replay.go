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
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/provider"
	"github.com/rotblauer/motiond/stream"
	"github.com/rotblauer/motiond/timer"
	"github.com/rotblauer/motiond/types/fix"
	"github.com/spf13/cobra"
)

var optReplayBatchSize int
var optReplayPersist bool
var optReplaySince, optReplayUntil string

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [file...]",
	Short: "Replay recorded fixes on a simulated clock",
	Long: `Replay runs recorded fixes through a tracker as if they were arriving live,
on a clock that jumps to each fix's time. Stationary timeouts fire when they
would have, without waiting for them.

Fixes are read from the files given, or stdin. Files ending .gz are decompressed,
so a tracker's fixes.geojson.gz archive (see --archive) can be replayed directly.
Fixes are sorted by time within batches of --batch-size. --since and --until
(RFC3339, inclusive) replay only part of a recording.

Replays don't touch the tracker's persisted state unless --persist is set.

Examples:

  motiond replay ~/.motiond/trackers/default/fixes.geojson.gz --distance-threshold 100
  zcat master.json.gz | motiond replay --time-window --time-window-start 7 --time-window-end 22
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		cfg := loadConfig()
		if !optReplayPersist {
			cfg.Tracker.DataDir = ""
			cfg.Archive = false
		}
		cfg.Tracker.KeepAlive = false

		var readers []io.Reader
		for _, path := range args {
			r, err := openFixesFile(path)
			if err != nil {
				log.Fatalln(err)
			}
			defer r.Close()
			readers = append(readers, r)
		}
		if len(readers) == 0 {
			readers = append(readers, os.Stdin)
		}

		keep, err := replayWindow(optReplaySince, optReplayUntil)
		if err != nil {
			log.Fatalln(err)
		}
		fixes, err := readFixes(context.Background(), optReplayBatchSize, keep, readers...)
		if err != nil {
			log.Fatalln(err)
		}
		if len(fixes) == 0 {
			log.Fatalln("no fixes")
		}
		slog.Info("Replaying", "fixes", len(fixes),
			"from", fixes[0].ObservedAt, "to", fixes[len(fixes)-1].ObservedAt)

		clock := timer.NewFakeClock(fixes[0].ObservedAt)
		clock.Synchronous = true
		p := &provider.Replay{
			Fixes: fixes,
			Clock: clock,
			Tail:  cfg.Tracker.Filter.StationaryTimeout() + time.Second,
		}
		if err := runTracker(cfg, p, runOptions{
			trackerOpts: []api.TrackerOption{api.WithClock(clock)},
		}); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().IntVar(&optReplayBatchSize, "batch-size", 100_000, "Sort fixes by time within batches of this size")
	replayCmd.Flags().BoolVar(&optReplayPersist, "persist", false, "Use and update the tracker's persisted state")
	replayCmd.Flags().StringVar(&optReplaySince, "since", "", "Skip fixes observed before this time (RFC3339)")
	replayCmd.Flags().StringVar(&optReplayUntil, "until", "", "Skip fixes observed after this time (RFC3339)")
}

// replayWindow returns a predicate keeping fixes observed within [since, until].
// Empty bounds are open.
func replayWindow(since, until string) (func(fix.Fix) bool, error) {
	var from, to time.Time
	var err error
	if since != "" {
		if from, err = time.Parse(time.RFC3339, since); err != nil {
			return nil, fmt.Errorf("since: %w", err)
		}
	}
	if until != "" {
		if to, err = time.Parse(time.RFC3339, until); err != nil {
			return nil, fmt.Errorf("until: %w", err)
		}
	}
	return func(f fix.Fix) bool {
		if !from.IsZero() && f.ObservedAt.Before(from) {
			return false
		}
		if !to.IsZero() && f.ObservedAt.After(to) {
			return false
		}
		return true
	}, nil
}

// readFixes decodes every fix from readers, in order, sorting them by
// observation time within batches of batchSize. A non-nil keep drops
// the fixes it returns false for.
func readFixes(ctx context.Context, batchSize int, keep func(fix.Fix) bool, readers ...io.Reader) ([]fix.Fix, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	decoded := make(chan fix.Fix)
	errc := make(chan error, 1)
	go func() {
		defer close(decoded)
		for _, r := range readers {
			err := fix.Decode(r, func(f fix.Fix) error {
				select {
				case decoded <- f:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil && !errors.Is(err, io.EOF) {
				errc <- err
				return
			}
		}
	}()

	var in <-chan fix.Fix = decoded
	if keep != nil {
		in = stream.Filter(ctx, keep, in)
	}
	sorted := stream.BatchSort(ctx, batchSize, func(a, b fix.Fix) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	}, in)
	fixes := stream.Collect(ctx, sorted)

	select {
	case err := <-errc:
		return fixes, err
	default:
		return fixes, nil
	}
}
