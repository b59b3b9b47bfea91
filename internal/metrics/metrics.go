// Package metrics exposes the scheduler's Prometheus instrumentation. All
// metrics hang off one registry owned by the app so tests can build isolated
// instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the scheduler records.
type Metrics struct {
	// Run lifecycle.
	Runs        *prometheus.CounterVec // result: ok | error | cached
	RunDuration prometheus.Histogram

	// Latest run shape.
	Intervals   prometheus.Gauge
	Unscheduled prometheus.Gauge

	// Refinement pipeline counters, accumulated across runs.
	RefineMerges   prometheus.Counter
	RefineRejects  prometheus.Counter
	RefineMoves    prometheus.Counter
	RefineSkips    prometheus.Counter
	RefineFailures *prometheus.CounterVec // pass: consolidate | batch

	// Carryover ledger flow.
	CarryoverConsumed     prometheus.Counter
	CarryoverSkipped      prometheus.Counter
	CarryoverDroppedHours prometheus.Counter

	// HTTP surface.
	HTTPRequests *prometheus.CounterVec // method, route, code
	HTTPDuration *prometheus.HistogramVec
}

// New registers all instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arksched_runs_total",
				Help: "Scheduling runs by result",
			},
			[]string{"result"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arksched_run_duration_seconds",
				Help:    "Wall time of one full scheduling run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		Intervals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arksched_run_intervals",
				Help: "Intervals in the latest published run",
			},
		),
		Unscheduled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "arksched_run_unscheduled",
				Help: "Orders or units the latest run could not place",
			},
		),
		RefineMerges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_refine_merges_total",
				Help: "Interval pairs merged by consolidation",
			},
		),
		RefineRejects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_refine_rejects_total",
				Help: "Merge candidates rejected by the guard checks",
			},
		),
		RefineMoves: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_refine_moves_total",
				Help: "Intervals moved later by stage batching",
			},
		),
		RefineSkips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_refine_skips_total",
				Help: "Batching candidates skipped to protect a deadline",
			},
		),
		RefineFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arksched_refine_failures_total",
				Help: "Refinement passes that failed open",
			},
			[]string{"pass"},
		),
		CarryoverConsumed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_carryover_consumed_total",
				Help: "Ledger entries consumed by propagation",
			},
		),
		CarryoverSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_carryover_skipped_total",
				Help: "Ledger entries propagation refused to place",
			},
		),
		CarryoverDroppedHours: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "arksched_carryover_dropped_hours_total",
				Help: "Remaining hours lost to window exhaustion",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arksched_http_requests_total",
				Help: "API requests by method, route, and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arksched_http_request_duration_seconds",
				Help:    "API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// NewRegistry builds a fresh registry with the Go and process collectors
// plus the scheduler metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// Handler serves the registry in the standard exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
