package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InferenceRequests counts inference requests by outcome.
	// Labels: status (ok, error)
	InferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seslm",
		Subsystem: "serving",
		Name:      "requests_total",
		Help:      "Total inference requests handled",
	}, []string{"status"})

	// InferenceLatency measures end-to-end request latency.
	InferenceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "seslm",
		Subsystem: "serving",
		Name:      "latency_seconds",
		Help:      "Inference request latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	// TokensProcessed counts tokens by direction.
	// Labels: direction (input, output)
	TokensProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seslm",
		Subsystem: "serving",
		Name:      "tokens_total",
		Help:      "Total tokens processed",
	}, []string{"direction"})

	// DriftScore tracks the distribution of composite drift scores.
	DriftScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "seslm",
		Subsystem: "drift",
		Name:      "score",
		Help:      "Distribution of composite drift scores",
		Buckets:   []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.5, 0.75, 1.0},
	})

	// DriftEvents counts scores that crossed the drift threshold.
	DriftEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seslm",
		Subsystem: "drift",
		Name:      "events_total",
		Help:      "Total drift threshold crossings",
	})

	// EvolutionCycles counts cycle attempts by outcome.
	// Labels: status (APPROVED, REJECTED, SKIPPED, ERROR)
	EvolutionCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seslm",
		Subsystem: "evolution",
		Name:      "cycles_total",
		Help:      "Total evolution cycle attempts by outcome",
	}, []string{"status"})

	// RegisteredVersions gauges the registry size.
	RegisteredVersions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "seslm",
		Subsystem: "registry",
		Name:      "versions",
		Help:      "Number of registered model versions",
	})

	// Rollbacks counts governance and cycle rollbacks.
	// Labels: kind (backup, explicit)
	Rollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seslm",
		Subsystem: "governance",
		Name:      "rollbacks_total",
		Help:      "Total rollback operations",
	}, []string{"kind"})
)
