package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

// Reader reads JSON fixes from r: newline-delimited, or one array.
// Messages that don't decode are logged and skipped.
// Run returns nil at the end of input.
type Reader struct {
	r        io.Reader
	throttle *Throttle
	logger   *slog.Logger
}

func NewReader(r io.Reader, cfg *params.ProviderConfig) *Reader {
	if cfg == nil {
		cfg = params.DefaultProviderConfig()
	}
	return &Reader{
		r:        r,
		throttle: NewThrottle(cfg.PassiveInterval),
		logger:   slog.With("provider", "json"),
	}
}

func (p *Reader) Run(ctx context.Context, deliver func(fix.Fix)) error {
	n, skipped := 0, 0
	err := fix.ScanJSONMessages(p.r, func(message json.RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fix.DecodeObject(message, func(f fix.Fix) error {
			n++
			if !p.throttle.Pass(f) {
				skipped++
				return nil
			}
			deliver(f)
			return nil
		})
		if err != nil {
			p.logger.Warn("Skipping undecodable message", "error", err, "message", string(message))
		}
		return nil
	})
	p.logger.Info("Reader done", "read", n, "throttled", skipped)
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Reader) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.throttle.SetCadence(c)
	return nil
}

// NMEA reads NMEA 0183 sentences from r, eg. a serial GPS.
// RMC and GGA sentences with a fix are delivered; everything else is skipped.
// RMC and GGA for the same epoch both produce a fix; wrap with Dedupe to drop the repeat.
type NMEA struct {
	r        io.Reader
	throttle *Throttle
	logger   *slog.Logger
}

func NewNMEA(r io.Reader, cfg *params.ProviderConfig) *NMEA {
	if cfg == nil {
		cfg = params.DefaultProviderConfig()
	}
	return &NMEA{
		r:        r,
		throttle: NewThrottle(cfg.PassiveInterval),
		logger:   slog.With("provider", "nmea"),
	}
}

func (p *NMEA) Run(ctx context.Context, deliver func(fix.Fix)) error {
	scanner := bufio.NewScanner(p.r)
	var date fix.NMEADate
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		f, d, err := fix.ParseNMEA(scanner.Text(), date)
		date = d
		if errors.Is(err, fix.ErrNoFix) {
			continue
		}
		if err != nil {
			// Noisy GPS or a partial sentence.
			p.logger.Debug("NMEA parse error", "error", err, "line", scanner.Text())
			continue
		}
		if p.throttle.Pass(f) {
			deliver(f)
		}
	}
	return scanner.Err()
}

func (p *NMEA) SetCadence(ctx context.Context, c motion.Cadence) error {
	p.throttle.SetCadence(c)
	return nil
}
