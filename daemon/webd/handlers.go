package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/common"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Tracker   api.Status              `json:"tracker"`
	LastEvent *events.Event           `json:"last_event,omitempty"`
	Known     []string                `json:"known,omitempty"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
		Config:    s.Config,
		Tracker:   s.Tracker.Status(),
	}
	if ev, ok := s.recent.Last(); ok {
		st.LastEvent = &ev
	}
	if s.LastKnown != nil {
		st.Known = s.LastKnown.Names()
	}
	s.writeJSON(w, st)
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

// handleLast writes the last known fix for ?name=, defaulting to the served tracker.
func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	if s.LastKnown == nil {
		http.Error(w, "No last-known cache", http.StatusNotFound)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = s.Tracker.Name
	}
	f, ok := s.LastKnown.Get(name)
	if !ok {
		http.Error(w, "No fix for "+strconv.Quote(name), http.StatusNotFound)
		return
	}
	s.writeJSON(w, f)
}

const defaultEventsLimit = 100

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultEventsLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

// kindParam parses ?kind=, returning ok false when it is absent.
func kindParam(r *http.Request) (kind events.Kind, ok bool, err error) {
	v := r.URL.Query().Get("kind")
	if v == "" {
		return kind, false, nil
	}
	if err := kind.UnmarshalText([]byte(v)); err != nil {
		return kind, false, err
	}
	return kind, true, nil
}

// recentOfKind returns up to limit of the newest in-memory events of kind, oldest first.
func (s *WebDaemon) recentOfKind(kind events.Kind, limit int) []events.Event {
	var evs []events.Event
	s.recent.Scan(func(ev events.Event) bool {
		if ev.Kind == kind {
			evs = append(evs, ev)
		}
		return true
	})
	if len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	return evs
}

// handleEvents writes up to ?limit= recent events, oldest first, optionally
// only those of ?kind=. With ?source=store they are read from the persisted
// event log instead of the in-memory history; there the kind filter applies
// to the limit read.
func (s *WebDaemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, byKind, err := kindParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var evs []events.Event
	switch r.URL.Query().Get("source") {
	case "", "memory":
		if byKind {
			evs = s.recentOfKind(kind, limit)
		} else {
			evs = s.recent.Tail(limit)
		}
	case "store":
		store := s.Tracker.Store()
		if store == nil {
			http.Error(w, "Tracker has no store", http.StatusNotFound)
			return
		}
		evs, err = store.ReadEvents(limit)
		if err != nil {
			s.logger.Error("Failed to read events", "error", err)
			http.Error(w, "Failed to read events", http.StatusInternalServerError)
			return
		}
		if byKind {
			evs = slices.DeleteFunc(evs, func(ev events.Event) bool { return ev.Kind != kind })
		}
	default:
		http.Error(w, "Unknown source", http.StatusBadRequest)
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	s.writeJSON(w, evs)
}

type distanceSummary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

type eventsSummary struct {
	Events   int                         `json:"events"`
	Kinds    map[events.Kind]int         `json:"kinds"`
	Reasons  map[events.RejectReason]int `json:"reasons"`
	Progress distanceSummary             `json:"progress"`
}

// summarize describes the recent event history. Distances are those
// of MotionProgress events, in meters.
func summarize(evs []events.Event) (eventsSummary, error) {
	sum := eventsSummary{
		Events:  len(evs),
		Kinds:   map[events.Kind]int{},
		Reasons: map[events.RejectReason]int{},
	}
	var distances stats.Float64Data
	for _, ev := range evs {
		sum.Kinds[ev.Kind]++
		if ev.Kind == events.FixRejected {
			sum.Reasons[ev.Reason]++
		}
		if ev.Kind == events.MotionProgress {
			distances = append(distances, ev.DistanceMeters)
		}
	}
	sum.Progress.Count = len(distances)
	if len(distances) == 0 {
		return sum, nil
	}
	var err error
	if sum.Progress.Total, err = stats.Sum(distances); err != nil {
		return sum, err
	}
	if sum.Progress.Mean, err = stats.Mean(distances); err != nil {
		return sum, err
	}
	if sum.Progress.Median, err = stats.Median(distances); err != nil {
		return sum, err
	}
	if sum.Progress.P90, err = stats.PercentileNearestRank(distances, 90); err != nil {
		return sum, err
	}
	if sum.Progress.Max, err = stats.Max(distances); err != nil {
		return sum, err
	}
	for _, v := range []*float64{&sum.Progress.Total, &sum.Progress.Mean, &sum.Progress.Median, &sum.Progress.P90, &sum.Progress.Max} {
		*v = common.DecimalToFixed(*v, 1)
	}
	return sum, nil
}

func (s *WebDaemon) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := summarize(s.recent.Get())
	if err != nil {
		s.logger.Error("Failed to summarize events", "error", err)
		http.Error(w, "Failed to summarize events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, sum)
}

type postFixesResponse struct {
	Received int            `json:"received"`
	Cadence  motion.Cadence `json:"cadence"`
}

// handlePostFixes delivers each fix in the body to the tracker, in order.
// The body is anything types/fix decodes: a Feature, a FeatureCollection,
// flat objects, arrays of them or newline-delimited JSON.
// The response carries the cadence the client should now sample at.
func (s *WebDaemon) handlePostFixes(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	n := 0
	var deliverErr error
	err := fix.Decode(r.Body, func(f fix.Fix) error {
		if deliverErr = s.Tracker.Deliver(r.Context(), f); deliverErr != nil {
			return deliverErr
		}
		n++
		return nil
	})
	switch {
	case deliverErr != nil:
		s.logger.Warn("Failed to deliver fixes", "error", deliverErr, "delivered", n)
		http.Error(w, "Tracker unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		s.logger.Warn("Failed to decode fixes", "error", err, "delivered", n)
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	case n == 0:
		http.Error(w, "No fixes", http.StatusUnprocessableEntity)
		return
	}
	s.logger.Debug("Delivered fixes", "count", n)
	s.writeJSON(w, postFixesResponse{Received: n, Cadence: s.Tracker.Cadence()})
}
