package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/metrics"
)

// APIConfig type represents the configuration for the API HTTP server.
// The chain is required, the events recorder and the metrics collector are
// optional.
type APIConfig struct {
	Host    string
	Port    int
	Chain   *chain.Chain
	Events  *events.Recorder
	Metrics *metrics.Collector
}

// API type represents the API HTTP server.
type API struct {
	router  *chi.Mux
	server  *http.Server
	addr    net.Addr
	chain   *chain.Chain
	events  *events.Recorder
	metrics *metrics.Collector
}

// New creates a new API instance with the given configuration and starts
// serving it in the background.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Chain == nil {
		return nil, fmt.Errorf("missing chain instance")
	}
	a := &API{
		chain:   conf.Chain,
		events:  conf.Events,
		metrics: conf.Metrics,
	}

	// Initialize router
	a.initRouter()
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	a.addr = listener.Addr()
	a.server = &http.Server{Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("starting API server", "address", a.addr.String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() net.Addr {
	return a.addr
}

// Close gracefully shuts down the HTTP server.
func (a *API) Close(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	for _, h := range []struct {
		method, endpoint string
		fn               http.HandlerFunc
	}{
		{http.MethodGet, PingEndpoint, func(w http.ResponseWriter, r *http.Request) { httpWriteOK(w) }},
		{http.MethodPost, CallsEndpoint, a.submitCall},
		{http.MethodGet, ChainEndpoint, a.chainInfo},
		{http.MethodGet, NonceEndpoint, a.nonce},
		{http.MethodGet, ElectionsEndpoint, a.elections},
		{http.MethodGet, ElectionEndpoint, a.election},
		{http.MethodGet, VoterEndpoint, a.voter},
		{http.MethodGet, BallotsEndpoint, a.ballots},
		{http.MethodGet, BallotEndpoint, a.ballot},
		{http.MethodGet, TallyEndpoint, a.tally},
		{http.MethodGet, ElectionJobEndpoint, a.electionJob},
		{http.MethodGet, JobsEndpoint, a.jobs},
		{http.MethodGet, JobEndpoint, a.job},
		{http.MethodGet, EventsEndpoint, a.eventsSince},
	} {
		log.Infow("register handler", "endpoint", h.endpoint, "method", h.method)
		a.router.Method(h.method, h.endpoint, h.fn)
	}
	log.Infow("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Method(http.MethodGet, MetricsEndpoint, a.metrics.Handler())
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
