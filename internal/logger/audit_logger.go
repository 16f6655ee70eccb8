// Package logger provides request audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for inbound requests.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRequest logs a served HTTP request.
func (al *AuditLogger) LogRequest(requestID, method, path string, status int, duration time.Duration, remoteAddr string) {
	al.WithFields(logrus.Fields{
		"request_id":  requestID,
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": float64(duration.Microseconds()) / 1000,
		"remote_addr": remoteAddr,
	}).Info("Request served")
}

// LogRateLimited logs a request rejected by the rate limiter.
func (al *AuditLogger) LogRateLimited(method, path, remoteAddr string) {
	al.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"remote_addr": remoteAddr,
	}).Warn("Request rate limited")
}

// LogBlocked logs a request refused because startup failed.
func (al *AuditLogger) LogBlocked(path, reason string) {
	al.WithFields(logrus.Fields{
		"path":   path,
		"reason": reason,
	}).Warn("Request blocked, predictor unavailable")
}
