package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogito_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_turns_total",
		Help: "Total turns handled, by outcome",
	}, []string{"outcome"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cogito_turn_duration_seconds",
		Help:    "End-to-end turn duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	TurnsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cogito_turns_in_flight",
		Help: "Turns currently being processed",
	})

	WallDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_wall_decisions_total",
		Help: "Validation wall decisions, by tier and outcome",
	}, []string{"tier", "outcome"})

	PlannerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_planner_requests_total",
		Help: "Planner invocations, by strategy and status",
	}, []string{"strategy", "status"})

	PlannerFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogito_planner_fallbacks_total",
		Help: "Times the planner fell back to the secondary strategy",
	})

	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_tool_executions_total",
		Help: "Tool executions, by tool and status",
	}, []string{"tool", "status"})

	ToolExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogito_tool_execution_duration_seconds",
		Help:    "Tool execution duration",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"tool"})

	VerifierVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_verifier_verdicts_total",
		Help: "Verifier verdicts, by status",
	}, []string{"status"})

	MemoryCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_memory_commits_total",
		Help: "Memory commits, by status",
	}, []string{"status"})

	MemoryWALDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cogito_memory_wal_depth",
		Help: "Commits buffered in the write-ahead queue",
	})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"model", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogito_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"model"})

	EntailmentBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_entailment_batches_total",
		Help: "Entailment scoring batches, by backend",
	}, []string{"backend"})

	AuditWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogito_audit_writes_total",
		Help: "Audit log writes, by status",
	}, []string{"status"})
)
