// Package metrics defines the Prometheus instrumentation for the
// orchestrator. All metrics are registered on the default registry via
// promauto and served from the admin mux.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WorkflowsStarted counts question runs by chosen route.
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_workflows_started_total",
			Help: "Question workflows started, by route",
		},
		[]string{"route"},
	)

	// WorkflowsCompleted counts terminal outcomes.
	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_workflows_completed_total",
			Help: "Question workflows completed, by outcome (ok, best_effort, failed)",
		},
		[]string{"outcome"},
	)

	// StageDuration observes per-stage activity latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchard_stage_duration_seconds",
			Help:    "Duration of workflow stages",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// RouteDecisions counts router verdicts, including the failure default.
	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_route_decisions_total",
			Help: "Router decisions, by route",
		},
		[]string{"route"},
	)

	// RetryCycles counts bounded-loop iterations by loop kind.
	RetryCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_retry_cycles_total",
			Help: "Retry cycles taken, by loop (refinement, regeneration)",
		},
		[]string{"loop"},
	)

	// ExternalCallFailures counts failed calls to downstream services.
	ExternalCallFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_external_call_failures_total",
			Help: "Failed calls to downstream services, by target",
		},
		[]string{"target"},
	)

	// GateVerdicts counts quality-gate outcomes.
	GateVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchard_gate_verdicts_total",
			Help: "Quality gate verdicts, by gate and verdict",
		},
		[]string{"gate", "verdict"},
	)

	// CacheHits and CacheMisses track the answer cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchard_answer_cache_hits_total",
			Help: "Answer cache hits",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchard_answer_cache_misses_total",
			Help: "Answer cache misses",
		},
	)

	// RunsPersisted counts run records written to the history store.
	RunsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchard_runs_persisted_total",
			Help: "Run records persisted to the history store",
		},
	)
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
