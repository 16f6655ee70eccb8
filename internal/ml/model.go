package ml

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Model types understood by NewModelClassifier
const (
	ModelTypeLogistic = "logistic"
)

// ModelSpec is the classifier definition stored in a model artifact.
type ModelSpec struct {
	Type         string             `json:"type"`
	Version      string             `json:"version,omitempty"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// LogisticClassifier is a binary logistic regression over named feature columns.
// It expects the row to carry exactly the columns it was trained on.
type LogisticClassifier struct {
	version      string
	intercept    float64
	coefficients map[string]float64
	required     []string
}

// NewModelClassifier creates a local classifier from an artifact model definition.
func NewModelClassifier(spec ModelSpec) (*LogisticClassifier, error) {
	switch spec.Type {
	case ModelTypeLogistic:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, spec.Type)
	}

	coefficients := make(map[string]float64, len(spec.Coefficients))
	required := make([]string, 0, len(spec.Coefficients))
	for col, w := range spec.Coefficients {
		coefficients[col] = w
		required = append(required, col)
	}
	// Deterministic reporting of the first missing column.
	sort.Strings(required)

	return &LogisticClassifier{
		version:      spec.Version,
		intercept:    spec.Intercept,
		coefficients: coefficients,
		required:     required,
	}, nil
}

// Name returns the classifier name
func (c *LogisticClassifier) Name() string {
	return ModelTypeLogistic
}

// Version returns the model version declared in the artifact
func (c *LogisticClassifier) Version() string {
	return c.version
}

// PredictProba returns sigmoid(intercept + Σ coefficient·value).
func (c *LogisticClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkRow(columns, row); err != nil {
		return 0, err
	}

	present := make(map[string]float64, len(columns))
	for i, col := range columns {
		present[col] = row[i]
	}
	for _, col := range c.required {
		if _, ok := present[col]; !ok {
			return 0, &MissingColumnError{Column: col}
		}
	}

	z := c.intercept
	for _, col := range columns {
		w, ok := c.coefficients[col]
		if !ok {
			return 0, fmt.Errorf("%w: column %q was not seen during training", ErrShapeMismatch, col)
		}
		z += w * present[col]
	}

	return checkProbability(sigmoid(z))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
