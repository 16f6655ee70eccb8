package service

import "fmt"

// ErrorKind classifies a failed prediction.
type ErrorKind string

const (
	// KindInvalidRequest marks a request rejected before any vector is built
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindMissingColumn marks a classifier that lacked an expected feature column
	KindMissingColumn ErrorKind = "missing_column"
	// KindGeneric marks any other failure while building or scoring the vector
	KindGeneric ErrorKind = "generic"
)

// PredictionError is a request-scoped failure. The predictor stays usable after it.
type PredictionError struct {
	Kind    ErrorKind
	Message string
	Column  string
	Err     error
}

func (e *PredictionError) Error() string {
	return e.Message
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func newMissingColumnError(column string, err error) *PredictionError {
	return &PredictionError{
		Kind:    KindMissingColumn,
		Message: fmt.Sprintf("Missing feature column: '%s'. Please verify model features.", column),
		Column:  column,
		Err:     err,
	}
}

func newGenericError(err error) *PredictionError {
	return &PredictionError{
		Kind:    KindGeneric,
		Message: fmt.Sprintf("Prediction error: %v", err),
		Err:     err,
	}
}
