package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
)

// Prometheus counts events per kind and reason and tracks the motion state.
type Prometheus struct {
	tracker  string
	events   *prometheus.CounterVec
	moving   *prometheus.GaugeVec
	distance *prometheus.CounterVec
}

// NewPrometheus registers its collectors with reg.
func NewPrometheus(reg prometheus.Registerer, tracker string) (*Prometheus, error) {
	p := &Prometheus{
		tracker: tracker,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motiond",
			Name:      "events_total",
			Help:      "Motion events by kind and reject reason.",
		}, []string{"tracker", "kind", "reason"}),
		moving: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "motiond",
			Name:      "moving",
			Help:      "1 while the tracker is Moving, 0 while Stationary.",
		}, []string{"tracker"}),
		distance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motiond",
			Name:      "progress_meters_total",
			Help:      "Distance covered between accepted fixes.",
		}, []string{"tracker"}),
	}
	for _, c := range []prometheus.Collector{p.events, p.moving, p.distance} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SetState sets the state gauge, eg. for a restored session.
func (p *Prometheus) SetState(s motion.State) {
	v := 0.0
	if s == motion.Moving {
		v = 1
	}
	p.moving.WithLabelValues(p.tracker).Set(v)
}

func (p *Prometheus) Emit(ctx context.Context, ev events.Event) error {
	p.events.WithLabelValues(p.tracker, ev.Kind.String(), ev.Reason.String()).Inc()
	switch ev.Kind {
	case events.MotionStarted:
		p.SetState(motion.Moving)
		p.distance.WithLabelValues(p.tracker).Add(ev.DistanceMeters)
	case events.MotionProgress:
		p.distance.WithLabelValues(p.tracker).Add(ev.DistanceMeters)
	case events.MotionStopped:
		p.SetState(motion.Stationary)
	}
	return nil
}
