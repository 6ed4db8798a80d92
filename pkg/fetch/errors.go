package fetch

import "errors"

var (
	// ErrNilModel is returned when a coordinator is created without a model.
	ErrNilModel = errors.New("fetch: model is required")

	// ErrSourcePanic wraps a panic recovered from a primary source.
	ErrSourcePanic = errors.New("fetch: primary source panicked")
)
