package models

import "errors"

// Custom errors
var (
	ErrInvalidRequest = errors.New("invalid prediction request")
)
