package webd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotblauer/motiond/api"
	"github.com/rotblauer/motiond/catdb/cache"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/sink"
	"github.com/rotblauer/motiond/stream"
)

// WebDaemon serves a tracker over HTTP.
// It is also a fix source: POST /fixes delivers straight to the tracker,
// and cadence commands reach clients over the websocket.
type WebDaemon struct {
	Config    *params.WebDaemonConfig
	Tracker   *api.Tracker
	LastKnown *cache.LastKnown
	Gatherer  prometheus.Gatherer

	logger         *slog.Logger
	melodyInstance *melody.Melody
	recent         *stream.RingBuffer[events.Event]
	started        time.Time
}

type WebDaemonOption func(s *WebDaemon)

// WithLastKnown serves /last from c.
func WithLastKnown(c *cache.LastKnown) WebDaemonOption {
	return func(s *WebDaemon) {
		s.LastKnown = c
	}
}

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) WebDaemonOption {
	return func(s *WebDaemon) {
		s.Gatherer = g
	}
}

func NewWebDaemon(config *params.WebDaemonConfig, tracker *api.Tracker, opts ...WebDaemonOption) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if tracker == nil {
		return nil, errors.New("web daemon: nil tracker")
	}
	s := &WebDaemon{
		Config:  config,
		Tracker: tracker,
		logger:  slog.With("d", "web"),
		recent:  stream.NewRingBuffer[events.Event](config.RecentEvents),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initMelody()
	return s, nil
}

// Run subscribes to the tracker's feeds and serves HTTP until ctx is done.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return fmt.Errorf("web daemon listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *WebDaemon) Serve(ctx context.Context, ln net.Listener) error {
	subscribed := s.subscribe(ctx)

	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "network", ln.Addr().Network(), "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Stopping web daemon")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.melodyInstance.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		s.logger.Warn("Failed to close websockets", "error", err)
	}
	shutdownErr := server.Shutdown(shutdownCtx)
	<-subscribed
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	// The websocket is not wrapped by the API middlewares; CORS headers
	// on an upgraded connection are meaningless.
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	if s.Gatherer != nil {
		apiRoutes.Path("/metrics").Handler(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/events").HandlerFunc(s.handleEvents).Methods(http.MethodGet)
	apiJSONRoutes.Path("/summary").HandlerFunc(s.handleSummary).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/fixes").HandlerFunc(s.handlePostFixes).Methods(http.MethodPost)

	return router
}

// subscribe keeps the recent-events ring and websocket clients fed.
// The returned channel is closed once both subscriptions have ended.
func (s *WebDaemon) subscribe(ctx context.Context) <-chan struct{} {
	eventsDone := sink.AttachFunc(ctx, &s.Tracker.EventFeed, func(_ context.Context, ev events.Event) error {
		s.recent.Add(ev)
		return s.broadcast(broadcast{Action: websocketActionEvent, Event: &ev})
	}, params.DefaultBufferSize, nil)
	cadenceDone := sink.AttachFunc(ctx, &s.Tracker.CadenceFeed, func(_ context.Context, c motion.Cadence) error {
		return s.broadcast(broadcast{Action: websocketActionCadence, Cadence: &c})
	}, params.DefaultBufferSize, nil)
	done := make(chan struct{})
	go func() {
		<-eventsDone
		<-cadenceDone
		close(done)
	}()
	return done
}
