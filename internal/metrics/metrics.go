// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcomes.
const (
	OutcomeDone            = "done"
	OutcomeValidationError = "validation_error"
	OutcomeError           = "error"
)

var (
	// Analyses counts finished analysis runs by outcome.
	Analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritybot",
			Name:      "analyses_total",
			Help:      "Analysis runs by outcome.",
		},
		[]string{"outcome"},
	)

	// WebhookUpdates counts inbound updates by classification.
	WebhookUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritybot",
			Name:      "webhook_updates_total",
			Help:      "Webhook updates by kind.",
		},
		[]string{"kind"},
	)

	// ExternalCallDuration observes latency of calls to third-party services.
	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritybot",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of completion, transcription and remote analysis calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"service"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "veritybot",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		},
		[]string{"breaker"},
	)
)

func init() {
	prometheus.MustRegister(Analyses)
	prometheus.MustRegister(WebhookUpdates)
	prometheus.MustRegister(ExternalCallDuration)
	prometheus.MustRegister(BreakerState)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
