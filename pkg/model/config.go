package model

import (
	"fmt"

	"github.com/Sternrassler/uncover/pkg/fetch"
	"github.com/rs/zerolog"
)

// Config holds model configuration.
type Config[T any] struct {
	// PageSize is the number of positions per page. It cannot change once
	// the model is in use, except through SetState.
	PageSize int

	// Placeholder is returned for positions whose data is not yet known.
	Placeholder T

	// Fetch configures the coordinator.
	Fetch fetch.Config

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration: page size 10 and the
// default fetch settings.
func DefaultConfig[T any]() Config[T] {
	return Config[T]{
		PageSize: 10,
		Fetch:    fetch.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config[T]) Validate() error {
	if c.PageSize < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidPageSize, c.PageSize)
	}
	return c.Fetch.Validate()
}
