package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/f1-predictor/internal/config"
)

// Backend names accepted in configuration
const (
	BackendArtifact = "artifact"
	BackendHTTP     = "http"
	BackendGRPC     = "grpc"
)

// Classifier returns the positive-class probability for a single row whose
// values are laid out in the order of columns.
type Classifier interface {
	Name() string
	PredictProba(ctx context.Context, columns []string, row []float64) (float64, error)
}

// NewClassifier creates the classifier selected by the configured backend.
// The artifact backend evaluates spec locally; remote backends ignore it.
func NewClassifier(cfg *config.ClassifierConfig, spec ModelSpec, logger *logrus.Logger) (Classifier, error) {
	switch cfg.Backend {
	case "", BackendArtifact:
		return NewModelClassifier(spec)
	case BackendHTTP:
		return NewHTTPClassifier(cfg, logger), nil
	case BackendGRPC:
		return NewGRPCClassifier(cfg.GRPCAddress, time.Duration(cfg.TimeoutSeconds)*time.Second, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// checkRow validates the row against its column layout.
func checkRow(columns []string, row []float64) error {
	if len(columns) != len(row) {
		return fmt.Errorf("%w: %d columns but %d values", ErrShapeMismatch, len(columns), len(row))
	}
	return nil
}

// checkProbability rejects values outside [0, 1].
func checkProbability(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v out of range", ErrInvalidPrediction, p)
	}
	return p, nil
}
