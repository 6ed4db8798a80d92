package ratelimit

import (
	"context"
	"fmt"

	"github.com/Sternrassler/uncover/pkg/primary"
)

// Source is a primary.DataSource that waits on a Tracker before every
// fetch. A denied fetch returns the tracker's error without calling the
// inner source, so the page ends up unavailable in the model.
type Source[T any] struct {
	inner   primary.DataSource[T]
	tracker *Tracker
}

// NewSource wraps inner.
func NewSource[T any](inner primary.DataSource[T], tracker *Tracker) *Source[T] {
	return &Source[T]{inner: inner, tracker: tracker}
}

// Fetch implements primary.DataSource.
func (s *Source[T]) Fetch(ctx context.Context, req primary.Request) (*primary.Response[T], error) {
	if err := s.tracker.Wait(ctx); err != nil {
		return nil, fmt.Errorf("page %d: %w", req.Page, err)
	}
	return s.inner.Fetch(ctx, req)
}
