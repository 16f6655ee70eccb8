// Package ml provides the classifiers that turn feature vectors into win probabilities.
package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrClassifierUnavailable indicates a remote classifier is unreachable
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInvalidPrediction indicates the classifier returned an unusable probability
	ErrInvalidPrediction = errors.New("invalid prediction response")

	// ErrShapeMismatch indicates the row layout does not match what the model expects
	ErrShapeMismatch = errors.New("feature layout mismatch")

	// ErrUnknownModelType indicates the artifact declares an unsupported model type
	ErrUnknownModelType = errors.New("unknown model type")

	// ErrUnknownBackend indicates an unsupported classifier backend in configuration
	ErrUnknownBackend = errors.New("unknown classifier backend")

	// ErrTimeout indicates request timed out
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidResponse indicates invalid response from a remote classifier
	ErrInvalidResponse = errors.New("invalid response from classifier")
)

// MissingColumnError reports a feature column the model expects but the row lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing feature column %q", e.Column)
}

// MissingColumn returns the column named by a MissingColumnError in err's chain.
func MissingColumn(err error) (string, bool) {
	var mce *MissingColumnError
	if errors.As(err, &mce) {
		return mce.Column, true
	}
	return "", false
}
