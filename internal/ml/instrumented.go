package ml

import (
	"context"
	"errors"
	"time"
)

// Outcome labels recorded in PredictionsTotal
const (
	OutcomeSuccess       = "success"
	OutcomeMissingColumn = "missing_column"
	OutcomeError         = "error"
	OutcomeCached        = "cached"
)

// InstrumentedClassifier records latency and outcome metrics around a classifier
type InstrumentedClassifier struct {
	inner Classifier
}

// Instrument wraps a classifier with Prometheus instrumentation
func Instrument(c Classifier) *InstrumentedClassifier {
	return &InstrumentedClassifier{inner: c}
}

// Name returns the wrapped classifier's name
func (c *InstrumentedClassifier) Name() string {
	return c.inner.Name()
}

// Unwrap returns the wrapped classifier
func (c *InstrumentedClassifier) Unwrap() Classifier {
	return c.inner
}

// PredictProba delegates to the wrapped classifier
func (c *InstrumentedClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	start := time.Now()
	p, err := c.inner.PredictProba(ctx, columns, row)
	PredictionLatency.WithLabelValues(c.inner.Name()).Observe(time.Since(start).Seconds())

	var mce *MissingColumnError
	switch {
	case err == nil:
		PredictionsTotal.WithLabelValues(c.inner.Name(), OutcomeSuccess).Inc()
	case errors.As(err, &mce):
		PredictionsTotal.WithLabelValues(c.inner.Name(), OutcomeMissingColumn).Inc()
	default:
		PredictionsTotal.WithLabelValues(c.inner.Name(), OutcomeError).Inc()
	}
	return p, err
}

// Close closes the wrapped classifier when it holds resources
func (c *InstrumentedClassifier) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
