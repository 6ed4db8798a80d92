package model

import "errors"

var (
	// ErrInvalidState is returned by SetState when the blob could not be
	// decoded. The model has already fallen back to an empty state.
	ErrInvalidState = errors.New("invalid model state")

	// ErrInvalidPageSize is returned for a page size below 1.
	ErrInvalidPageSize = errors.New("page size must be positive")
)
