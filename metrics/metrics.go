// Package metrics exposes Prometheus instrumentation for the replication
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entitiesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagmirror",
		Name:      "entities_created_total",
		Help:      "Entities created in the target workspace, by kind.",
	}, []string{"kind"})

	rateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tagmirror",
		Name:      "rate_limit_hits_total",
		Help:      "Create calls that hit the backend rate limit.",
	})

	rollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tagmirror",
		Name:      "rollbacks_total",
		Help:      "Build runs that triggered a rollback.",
	})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tagmirror",
		Name:      "phase_duration_seconds",
		Help:      "Wall time spent in each pipeline phase.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"phase"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagmirror",
		Name:      "sessions_active",
		Help:      "Replication sessions currently running.",
	})

	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagmirror",
		Name:      "sessions_completed_total",
		Help:      "Finished replication sessions, by outcome.",
	}, []string{"outcome"})
)

// EntityCreated counts one successful create.
func EntityCreated(kind string) {
	entitiesCreated.WithLabelValues(kind).Inc()
}

// RateLimitHit counts one rate-limited create attempt.
func RateLimitHit() {
	rateLimitHits.Inc()
}

// RollbackTriggered counts one rollback pass.
func RollbackTriggered() {
	rollbacks.Inc()
}

// PhaseObserved records the wall time of one completed phase.
func PhaseObserved(phase string, seconds float64) {
	phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// SessionStarted marks a session as running.
func SessionStarted() {
	sessionsActive.Inc()
}

// SessionFinished marks a session as done with the given outcome
// ("success" or "error").
func SessionFinished(outcome string) {
	sessionsActive.Dec()
	sessionsCompleted.WithLabelValues(outcome).Inc()
}
