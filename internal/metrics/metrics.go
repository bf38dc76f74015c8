package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "health_checks_total",
			Help:      "Number of health probes by result (healthy/unhealthy).",
		}, []string{"name", "result"},
	)
	checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "check_duration_seconds",
			Help:      "Health probe duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of restart attempts issued.",
		}, []string{"name"},
	)
	restartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "restart_failures_total",
			Help:      "Number of restart commands that failed.",
		}, []string{"name"},
	)
	budgetExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "restart_budget_exhausted_total",
			Help:      "Times a service exhausted its daily restart budget.",
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between service states.",
		}, []string{"name", "from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "service",
			Name:      "current_state",
			Help:      "Current state of services (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
)

// Register registers all metrics with the provided registerer. It is safe to
// call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{healthChecks, checkDuration, restarts, restartFailures, budgetExhausted, stateTransitions, currentStates}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op if Register
// hasn't been called.

func IncHealthCheck(name string, healthy bool) {
	if regOK.Load() {
		result := "unhealthy"
		if healthy {
			result = "healthy"
		}
		healthChecks.WithLabelValues(name, result).Inc()
	}
}

func ObserveCheckDuration(name string, seconds float64) {
	if regOK.Load() {
		checkDuration.WithLabelValues(name).Observe(seconds)
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		restarts.WithLabelValues(name).Inc()
	}
}

func IncRestartFailure(name string) {
	if regOK.Load() {
		restartFailures.WithLabelValues(name).Inc()
	}
}

func IncBudgetExhausted(name string) {
	if regOK.Load() {
		budgetExhausted.WithLabelValues(name).Inc()
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetCurrentState(name, state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentStates.WithLabelValues(name, state).Set(value)
	}
}
