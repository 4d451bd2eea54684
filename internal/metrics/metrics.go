// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FortuneRequests counts single-fetch outcomes: cache_hit, generated, not_generated, failed.
	FortuneRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortune_requests_total",
		Help: "Fortune lookups by outcome",
	}, []string{"outcome"})

	// AIAttempts counts completion attempts: success, retryable, rejected, bad_format.
	AIAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortune_ai_attempts_total",
		Help: "AI completion attempts by outcome",
	}, []string{"outcome"})

	// AICallDuration measures a full Generate call including retries.
	AICallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fortune_ai_call_duration_seconds",
		Help:    "Duration of AI generation calls including retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	// BatchItems counts batch items by result: success, failure.
	BatchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortune_batch_items_total",
		Help: "Batch generation items by result",
	}, []string{"result"})

	// ContextLookups counts geolocation and weather lookups by kind and result.
	ContextLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fortune_context_lookups_total",
		Help: "Location and weather lookups by kind and result",
	}, []string{"kind", "result"})
)
