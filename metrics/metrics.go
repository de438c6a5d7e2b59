// Package metrics exposes the prometheus collectors of the node. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vocdoni/mixvote/types"
)

const namespace = "mixvote"

// Label values for call and mix run results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector groups the node metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	calls       *prometheus.CounterVec
	events      *prometheus.CounterVec
	blockHeight prometheus.Gauge
	mixRuns     *prometheus.CounterVec
	mixDuration prometheus.Histogram
	mixBallots  prometheus.Histogram
}

// NewCollector creates the collectors and registers them in reg. If reg is
// nil a new registry is used.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Collector{
		gatherer: reg,

		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "calls_total",
			Help:      "count of dispatched calls by method and result",
		}, []string{"method", "result"}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "events_total",
			Help:      "count of emitted events by name",
		}, []string{"name"}),

		blockHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "block_height",
			Help:      "current block height",
		}),

		mixRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "runs_total",
			Help:      "count of mix jobs processed by result",
		}, []string{"result"}),

		mixDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "run_duration_seconds",
			Help:      "time spent processing a mix job",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),

		mixBallots: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mixer",
			Name:      "run_ballots",
			Help:      "number of ballots mixed per job",
			Buckets:   []float64{1, 10, 100, 1000, 10000, 100000},
		}),
	}
}

// Handler returns the http handler serving the registered metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// CallDispatched counts a dispatched call.
func (c *Collector) CallDispatched(method string, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.calls.WithLabelValues(method, result).Inc()
}

// Emit counts the event. It makes the collector usable as an event sink.
func (c *Collector) Emit(ev types.Event) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(ev.EventName()).Inc()
}

// BlockHeight sets the current height.
func (c *Collector) BlockHeight(h types.BlockNumber) {
	if c == nil {
		return
	}
	c.blockHeight.Set(float64(h))
}

// MixRun records the outcome of a processed mix job.
func (c *Collector) MixRun(ballots int, took time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.mixRuns.WithLabelValues(result).Inc()
	c.mixDuration.Observe(took.Seconds())
	c.mixBallots.Observe(float64(ballots))
}
