// Package logger provides prediction-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for schema resolution and predictions.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(baseLogger *logrus.Logger) *PredictionLogger {
	return &PredictionLogger{
		Entry: baseLogger.WithField("component", "prediction"),
	}
}

// LogSchemaResolved logs the outcome of resolving the selectable values.
func (pl *PredictionLogger) LogSchemaResolved(columns, drivers, teams, races int, fallback []string) {
	entry := pl.WithFields(logrus.Fields{
		"columns": columns,
		"drivers": drivers,
		"teams":   teams,
		"races":   races,
	})
	if len(fallback) > 0 {
		entry.WithField("fallback", fallback).Warn("Feature schema lacks columns for some categories, using defaults")
		return
	}
	entry.Info("Feature schema resolved")
}

// LogPrediction logs a completed prediction.
func (pl *PredictionLogger) LogPrediction(requestID, classifier string, probability float64, activeColumns int, cacheHit bool, latencyMs float64) {
	pl.WithFields(logrus.Fields{
		"request_id":     requestID,
		"classifier":     classifier,
		"probability":    probability,
		"active_columns": activeColumns,
		"cache_hit":      cacheHit,
		"latency_ms":     latencyMs,
	}).Info("Prediction completed")
}

// LogUnmatched logs a categorical choice that activated no column.
func (pl *PredictionLogger) LogUnmatched(requestID, category, value string) {
	pl.WithFields(logrus.Fields{
		"request_id": requestID,
		"category":   category,
		"value":      value,
	}).Warn("Choice matched no feature column")
}

// LogPredictionError logs prediction errors.
func (pl *PredictionLogger) LogPredictionError(requestID, classifier, kind string, err error) {
	pl.WithFields(logrus.Fields{
		"request_id": requestID,
		"classifier": classifier,
		"error_kind": kind,
	}).WithError(err).Error("Prediction failed")
}
