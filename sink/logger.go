package sink

import (
	"context"
	"log/slog"

	"github.com/rotblauer/motiond/events"
)

// Logger writes every event to a structured log.
// Rejections log at Debug, transitions at Info.
type Logger struct {
	Logger *slog.Logger
}

func NewLogger(tracker string) *Logger {
	return &Logger{Logger: slog.With("tracker", tracker)}
}

func (l *Logger) Emit(ctx context.Context, ev events.Event) error {
	attrs := []any{"kind", ev.Kind, "at", ev.At}
	if ev.Fix != nil {
		attrs = append(attrs, "lat", ev.Fix.Latitude, "lon", ev.Fix.Longitude, "observed", ev.Fix.ObservedAt)
	}
	if ev.DistanceMeters > 0 {
		attrs = append(attrs, "distance", ev.DistanceMeters)
	}
	if ev.Kind == events.FixRejected {
		attrs = append(attrs, "reason", ev.Reason)
		l.Logger.DebugContext(ctx, "Fix rejected", attrs...)
		return nil
	}
	l.Logger.InfoContext(ctx, "Motion", attrs...)
	return nil
}
