package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xflow_generations_total",
		Help: "Generative-AI calls by operation and outcome",
	}, []string{"operation", "outcome"})
	QuotaErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xflow_quota_errors_total",
		Help: "Generative-AI calls rejected for quota or rate limit",
	}, []string{"operation"})
	ProfileFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xflow_profile_fallbacks_total",
		Help: "Profile lookups answered with the handle-derived fallback",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xflow_active_sessions",
		Help: "Page sessions currently held in memory",
	})
	StoreDroppedWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xflow_store_dropped_writes_total",
		Help: "Session store writes dropped because the value could not be serialized",
	})
)

func init() {
	prometheus.MustRegister(Generations, QuotaErrors, ProfileFallbacks, ActiveSessions, StoreDroppedWrites)
}

// Outcome labels for Generations.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeQuota    = "quota"
	OutcomeError    = "error"
)

// ObserveGeneration records one generative call.
func ObserveGeneration(operation, outcome string) {
	Generations.WithLabelValues(operation, outcome).Inc()
	if outcome == OutcomeQuota {
		QuotaErrors.WithLabelValues(operation).Inc()
	}
}
