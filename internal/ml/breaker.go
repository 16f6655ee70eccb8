package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen indicates the breaker is rejecting calls to a failing classifier
var ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrClassifierUnavailable)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed means calls pass through
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen means a single trial call is allowed after cooldown
	CircuitHalfOpen
	// CircuitOpen means calls are rejected
	CircuitOpen
)

// String returns string representation of circuit state
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	case CircuitOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines circuit breaker thresholds
type BreakerConfig struct {
	MaxFailureCount   int
	FailureTimeWindow time.Duration
	CooldownPeriod    time.Duration
}

// BreakerClassifier stops calling a remote classifier after repeated
// transport failures and lets a single trial through once the cooldown ends.
// Request-local errors such as a missing column never trip it.
type BreakerClassifier struct {
	inner           Classifier
	config          BreakerConfig
	logger          *logrus.Logger
	now             func() time.Time
	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	openedAt        time.Time
	trialInFlight   bool
}

// NewBreakerClassifier wraps a classifier with a circuit breaker
func NewBreakerClassifier(inner Classifier, config BreakerConfig, logger *logrus.Logger) *BreakerClassifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &BreakerClassifier{
		inner:  inner,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Name returns the wrapped classifier's name
func (b *BreakerClassifier) Name() string {
	return b.inner.Name()
}

// Unwrap returns the wrapped classifier
func (b *BreakerClassifier) Unwrap() Classifier {
	return b.inner
}

// State returns the current circuit state
func (b *BreakerClassifier) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

// PredictProba calls the wrapped classifier unless the circuit is open
func (b *BreakerClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	if err := b.acquire(); err != nil {
		return 0, err
	}

	p, err := b.inner.PredictProba(ctx, columns, row)
	b.record(err)
	return p, err
}

// Close closes the wrapped classifier when it holds resources
func (b *BreakerClassifier) Close() error {
	if closer, ok := b.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (b *BreakerClassifier) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked()
	switch b.state {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
	}
	return nil
}

// advanceLocked moves an open circuit to half-open once the cooldown has passed.
func (b *BreakerClassifier) advanceLocked() {
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.config.CooldownPeriod {
		b.state = CircuitHalfOpen
		b.trialInFlight = false
		b.logger.WithField("classifier", b.inner.Name()).Info("Circuit breaker entering half-open state after cooldown")
	}
}

func (b *BreakerClassifier) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !countsAsFailure(err) {
		if b.state == CircuitHalfOpen {
			b.logger.WithField("classifier", b.inner.Name()).Info("Circuit breaker closed after successful trial")
		}
		b.state = CircuitClosed
		b.failureCount = 0
		b.trialInFlight = false
		return
	}

	now := b.now()
	if b.state == CircuitHalfOpen {
		b.openLocked(now, "trial call failed")
		return
	}

	// Reset failure count if outside time window
	if now.Sub(b.lastFailureTime) > b.config.FailureTimeWindow {
		b.failureCount = 0
	}
	b.failureCount++
	b.lastFailureTime = now

	b.logger.WithFields(logrus.Fields{
		"classifier":    b.inner.Name(),
		"failure_count": b.failureCount,
		"max_allowed":   b.config.MaxFailureCount,
		"time_window":   b.config.FailureTimeWindow,
	}).WithError(err).Warn("Classifier failure recorded")

	if b.failureCount >= b.config.MaxFailureCount {
		b.openLocked(now, fmt.Sprintf("max failure count exceeded (%d >= %d) within %v",
			b.failureCount, b.config.MaxFailureCount, b.config.FailureTimeWindow))
	}
}

func (b *BreakerClassifier) openLocked(now time.Time, reason string) {
	oldState := b.state
	b.state = CircuitOpen
	b.openedAt = now
	b.trialInFlight = false
	BreakerTripsTotal.WithLabelValues(b.inner.Name()).Inc()

	b.logger.WithFields(logrus.Fields{
		"classifier":      b.inner.Name(),
		"old_state":       oldState.String(),
		"new_state":       b.state.String(),
		"reason":          reason,
		"cooldown_period": b.config.CooldownPeriod,
	}).Error("Circuit breaker opened")
}

// countsAsFailure reports whether err says the classifier itself is unhealthy.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := MissingColumn(err); ok {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrShapeMismatch) {
		return false
	}
	return true
}
