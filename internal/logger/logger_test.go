package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "debug", "development")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	buf.Reset()
	log = newLogger(buf, "nonsense", "production")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
	assert.Contains(t, buf.String(), "Invalid log level 'nonsense'")
}

func TestPredictionLoggerSchemaResolved(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogSchemaResolved(8, 2, 1, 3, nil)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "prediction", logEntry["component"])
	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, float64(2), logEntry["drivers"])
}

func TestPredictionLoggerSchemaFallback(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogSchemaResolved(2, 20, 10, 24, []string{"Driver", "Team", "Race"})

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Len(t, logEntry["fallback"], 3)
}

func TestPredictionLoggerPrediction(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogPrediction("req-1", "logistic", 0.1234, 5, true, 1.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "req-1", logEntry["request_id"])
	assert.Equal(t, 0.1234, logEntry["probability"])
	assert.Equal(t, true, logEntry["cache_hit"])
}

func TestPredictionLoggerUnmatched(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogUnmatched("req-2", "Driver", "Nobody")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "Driver", logEntry["category"])
	assert.Equal(t, "Nobody", logEntry["value"])
}

func TestPredictionLoggerError(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogPredictionError("req-3", "http", "generic", errors.New("boom"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "boom", logEntry["error"])
	assert.Equal(t, "generic", logEntry["error_kind"])
}

func TestAuditLoggerRequest(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogRequest("req-4", "POST", "/api/v1/predict", 200, 1500*time.Microsecond, "127.0.0.1:5000")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, float64(200), logEntry["status"])
	assert.Equal(t, 1.5, logEntry["duration_ms"])
}

func TestAuditLoggerRateLimitedAndBlocked(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogRateLimited("GET", "/", "10.0.0.1:1")
	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])

	buf.Reset()
	auditLogger.LogBlocked("/predict", "artifact not found")
	logEntry = parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "artifact not found", logEntry["reason"])
}
