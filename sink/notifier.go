package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

// Notifier writes one human-readable line per event, like a phone notification.
type Notifier struct {
	mu sync.Mutex
	w  io.Writer

	// Filter returns the filter config in effect, for window rejections.
	Filter func() params.FilterConfig
	// Detail also notifies on every received fix. See Received.
	Detail bool
	// Layout formats the event time prefix. Empty omits it.
	Layout string
}

func NewNotifier(w io.Writer, filter func() params.FilterConfig) *Notifier {
	return &Notifier{w: w, Filter: filter, Layout: time.TimeOnly}
}

// Text returns the notification text for ev.
func (n *Notifier) Text(ev events.Event) string {
	switch ev.Kind {
	case events.MotionStarted:
		return "Frequent Update Started"
	case events.MotionStopped:
		return "Frequent Update Stopped"
	case events.MotionProgress:
		return fmt.Sprintf("Latitude: %v, Longitude: %v, Distance: %s",
			ev.Fix.Latitude, ev.Fix.Longitude, meters(ev.DistanceMeters))
	case events.FixRejected:
		switch ev.Reason {
		case events.OutOfTimeWindow:
			cfg := params.DefaultFilterConfig()
			if n.Filter != nil {
				cfg = n.Filter()
			}
			zone, _ := cfg.Zone()
			return fmt.Sprintf("Hour %d out of range %d-%d",
				motion.HourOf(ev.Fix.ObservedAt, zone), cfg.TimeWindowStartHour, cfg.TimeWindowEndHour)
		case events.InsufficientDistance:
			return fmt.Sprintf("Checking distance for Movement Detection %s", meters(ev.DistanceMeters))
		case events.Malformed:
			return fmt.Sprintf("Malformed location %v", ev.Fix)
		}
	}
	return ev.String()
}

func meters(m float64) string {
	return humanize.SIWithDigits(m, 1, "m")
}

func (n *Notifier) write(at time.Time, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Layout != "" {
		text = at.Format(n.Layout) + " " + text
	}
	_, err := io.WriteString(n.w, text+"\n")
	return err
}

func (n *Notifier) Emit(ctx context.Context, ev events.Event) error {
	return n.write(ev.At, n.Text(ev))
}

// Received notifies a received fix when Detail is set.
func (n *Notifier) Received(ctx context.Context, f fix.Fix) error {
	if !n.Detail {
		return nil
	}
	return n.write(f.ObservedAt, fmt.Sprintf("Location Received lat: %v, lng: %v", f.Latitude, f.Longitude))
}
