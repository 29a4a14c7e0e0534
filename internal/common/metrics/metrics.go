package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_operations_total",
			Help: "Total number of orchestrator operations by outcome",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agency_operation_duration_seconds",
			Help:    "Duration of orchestrator operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"operation"},
	)

	OperationsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agency_operations_active",
			Help: "Number of in-flight orchestrator operations",
		},
		[]string{"operation"},
	)

	SourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_veille_source_outcomes_total",
			Help: "Veille source results by adapter kind and reason",
		},
		[]string{"kind", "reason"},
	)

	ItemsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_veille_items_collected_total",
			Help: "Veille items kept after validation and de-duplication",
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_cache_lookups_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agency_cache_write_errors_total",
			Help: "Computed values the cache failed to store",
		},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_breaker_transitions_total",
			Help: "Circuit breaker state changes per endpoint",
		},
		[]string{"endpoint", "from", "to"},
	)

	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_llm_fallbacks_total",
			Help: "LLM answers replaced by the rule-based analysis",
		},
		[]string{"operation", "reason"},
	)

	SlackCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_slack_commands_total",
			Help: "Slack commands received by command and status",
		},
		[]string{"command", "status"},
	)
)

// SourceOutcome records one veille source result. Successful sources use
// the reason "ok".
func SourceOutcome(kind, reason string) {
	SourceOutcomes.WithLabelValues(kind, reason).Inc()
}

func CacheHit(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

func CacheWriteError() {
	CacheWriteErrors.Inc()
}
