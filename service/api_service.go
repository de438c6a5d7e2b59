package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vocdoni/mixvote/api"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/metrics"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	chain   *chain.Chain
	events  *events.Recorder
	metrics *metrics.Collector
	api     *api.API
	mu      sync.Mutex
	cancel  context.CancelFunc
	host    string
	port    int
}

// NewAPI creates a new APIService instance. The events recorder and the
// metrics collector may be nil.
func NewAPI(ch *chain.Chain, rec *events.Recorder, mc *metrics.Collector, host string, port int) *APIService {
	return &APIService{
		chain:   ch,
		events:  rec,
		metrics: mc,
		host:    host,
		port:    port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:    as.host,
		Port:    as.port,
		Chain:   as.chain,
		Events:  as.events,
		Metrics: as.metrics,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
	if as.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := as.api.Close(ctx); err != nil {
			log.Warnw("API server shutdown", "error", err)
		}
		as.api = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

// Addr returns the address the API server is listening on, or nil if the
// service is not running. Useful when the configured port is 0.
func (as *APIService) Addr() net.Addr {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return nil
	}
	return as.api.Addr()
}
