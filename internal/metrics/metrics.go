// Package metrics provides centralized Prometheus metrics registry for the F1 predictor.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "f1_predictor",
		Name:      "prediction_requests_total",
		Help:      "Total number of prediction requests by channel and result",
	}, []string{"channel", "result"})
	UnmatchedCategoriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "f1_predictor",
		Name:      "unmatched_categories_total",
		Help:      "Total number of categorical choices that activated no feature column",
	}, []string{"category"})
	FormRendersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "f1_predictor",
		Name:      "form_renders_total",
		Help:      "Total number of prediction form renders",
	})
	BlockedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "f1_predictor",
		Name:      "blocked_requests_total",
		Help:      "Total number of requests refused because the predictor failed to start",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "f1_predictor",
		Name:      "rate_limited_requests_total",
		Help:      "Total number of requests rejected by the rate limiter",
	})
)

// Gauge metrics
var (
	SchemaColumns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "f1_predictor",
		Name:      "schema_columns",
		Help:      "Number of feature columns in the loaded schema",
	})
	ArtifactLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "f1_predictor",
		Name:      "artifact_loaded",
		Help:      "Whether the model artifact loaded successfully (1) or not (0)",
	})
	WebsocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "f1_predictor",
		Name:      "websocket_connections",
		Help:      "Number of open prediction websocket connections",
	})
)

// Histogram metrics
var (
	PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "f1_predictor",
		Name:      "prediction_duration_seconds",
		Help:      "End-to-end duration of a prediction in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(PredictionRequestsTotal)
		registry.MustRegister(UnmatchedCategoriesTotal)
		registry.MustRegister(FormRendersTotal)
		registry.MustRegister(BlockedRequestsTotal)
		registry.MustRegister(RateLimitedTotal)

		// Register gauge metrics
		registry.MustRegister(SchemaColumns)
		registry.MustRegister(ArtifactLoaded)
		registry.MustRegister(WebsocketConnections)

		// Register histogram metrics
		registry.MustRegister(PredictionDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. It serves the application
// registry together with the default one, where the classifier metrics live.
func Handler() http.Handler {
	gatherers := prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// RecordPrediction records a prediction request outcome.
func RecordPrediction(channel, result string, durationSeconds float64) {
	PredictionRequestsTotal.WithLabelValues(channel, result).Inc()
	PredictionDuration.Observe(durationSeconds)
}

// RecordUnmatched records a categorical choice that matched no column.
func RecordUnmatched(category string) {
	UnmatchedCategoriesTotal.WithLabelValues(category).Inc()
}

// RecordFormRender records a form render.
func RecordFormRender() {
	FormRendersTotal.Inc()
}

// RecordBlocked records a request refused by the blocking page.
func RecordBlocked() {
	BlockedRequestsTotal.Inc()
}

// RecordRateLimited records a rate-limited request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// UpdateSchemaColumns updates the schema column gauge.
func UpdateSchemaColumns(count int) {
	SchemaColumns.Set(float64(count))
}

// UpdateArtifactLoaded updates the artifact status gauge.
func UpdateArtifactLoaded(loaded bool) {
	if loaded {
		ArtifactLoaded.Set(1)
		return
	}
	ArtifactLoaded.Set(0)
}

// WebsocketOpened increments the open websocket gauge.
func WebsocketOpened() {
	WebsocketConnections.Inc()
}

// WebsocketClosed decrements the open websocket gauge.
func WebsocketClosed() {
	WebsocketConnections.Dec()
}
