package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per dependency: 0 closed, 1 open, 2 half-open.",
		},
		[]string{"dependency"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions per dependency.",
		},
		[]string{"dependency", "to"},
	)

	importsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_imports_total",
			Help:      "Dashboard snapshot imports by outcome.",
		},
		[]string{"outcome"},
	)

	weatherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_lookups_total",
			Help:      "Weather lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// ObserveBreaker records a breaker transition for dependency. It matches
// the circuitbreaker.WithStateChange callback once dependency is bound.
func ObserveBreaker(dependency string, to circuitbreaker.State) {
	breakerState.WithLabelValues(dependency).Set(float64(to))
	breakerTransitions.WithLabelValues(dependency, to.String()).Inc()
}

// RecordImport counts a snapshot import. outcome is "ok", "rejected", or
// "failed".
func RecordImport(outcome string) {
	importsTotal.WithLabelValues(outcome).Inc()
}

// RecordWeatherLookup counts a weather lookup by outcome.
func RecordWeatherLookup(outcome string) {
	weatherLookups.WithLabelValues(outcome).Inc()
}
