package primary

import (
	"context"
	"errors"
)

// ErrNoResponse is reported when a source returns neither a response nor an error.
var ErrNoResponse = errors.New("primary source returned no response")

// DataSource supplies one page of items for a request. Fetch may block; it is
// always called off the consumer's path.
type DataSource[T any] interface {
	Fetch(ctx context.Context, req Request) (*Response[T], error)
}

// DataSourceFunc adapts a plain function to DataSource.
type DataSourceFunc[T any] func(ctx context.Context, req Request) (*Response[T], error)

// Fetch implements DataSource.
func (f DataSourceFunc[T]) Fetch(ctx context.Context, req Request) (*Response[T], error) {
	return f(ctx, req)
}
