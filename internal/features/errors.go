package features

import "errors"

var (
	// ErrEmptyColumn indicates a feature column with an empty name
	ErrEmptyColumn = errors.New("empty feature column name")

	// ErrDuplicateColumn indicates a feature column declared more than once
	ErrDuplicateColumn = errors.New("duplicate feature column")
)
