package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enhancementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "craftresume",
			Subsystem: "llm",
			Name:      "enhancement_duration_seconds",
			Help:      "Provider enhancement call latency in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"provider", "outcome"},
	)

	enhancementTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "craftresume",
			Subsystem: "llm",
			Name:      "enhancements_total",
			Help:      "Total enhancement requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
)

// ObserveEnhancement records one provider call.
func ObserveEnhancement(provider string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	enhancementDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
	enhancementTotal.WithLabelValues(provider, outcome).Inc()
}
