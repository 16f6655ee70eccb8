// Package ml provides Prometheus metrics for classifier operations.
package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal tracks classifier predictions by backend and outcome
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "f1_predictor",
			Name:      "classifier_predictions_total",
			Help:      "Total number of classifier predictions",
		},
		[]string{"classifier", "outcome"}, // success, missing_column, error, cached
	)

	// PredictionLatency tracks classifier latency
	PredictionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "f1_predictor",
			Name:      "classifier_latency_seconds",
			Help:      "Classifier prediction latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"classifier"},
	)

	// CacheHitRatio tracks cache hit ratio
	CacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "f1_predictor",
			Name:      "prediction_cache_hit_ratio",
			Help:      "Prediction cache hit ratio",
		},
	)

	// BreakerTripsTotal tracks circuit breaker trips per classifier
	BreakerTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "f1_predictor",
			Name:      "classifier_breaker_trips_total",
			Help:      "Total number of classifier circuit breaker trips",
		},
		[]string{"classifier"},
	)
)
