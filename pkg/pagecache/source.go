package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store is the storage Source reads and writes. *Manager implements it.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, entry *Entry) error
}

// Option configures a Source.
type Option func(*options)

type options struct {
	namespace string
	logger    *zerolog.Logger
}

// WithNamespace sets the key namespace (default "pages").
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// Source is a primary.DataSource that serves pages from a Store and fetches
// misses from an inner source.
type Source[T any] struct {
	inner     primary.DataSource[T]
	store     Store
	ttl       time.Duration
	namespace string
	group     singleflight.Group
	logger    zerolog.Logger
}

// NewSource wraps inner. Fetched pages are kept for ttl.
func NewSource[T any](inner primary.DataSource[T], store Store, ttl time.Duration, opts ...Option) *Source[T] {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().Str("component", "pagecache").Logger()
	if o.logger != nil {
		logger = *o.logger
	}

	return &Source[T]{
		inner:     inner,
		store:     store,
		ttl:       ttl,
		namespace: o.namespace,
		logger:    logger,
	}
}

// Fetch implements primary.DataSource.
func (s *Source[T]) Fetch(ctx context.Context, req primary.Request) (*primary.Response[T], error) {
	key := KeyFor(s.namespace, req)

	if resp, ok := s.lookup(ctx, key, req); ok {
		cacheHits.Inc()
		return resp, nil
	}
	cacheMisses.Inc()

	v, err, shared := s.group.Do(key.String(), func() (any, error) {
		resp, err := s.inner.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, primary.ErrNoResponse
		}
		s.save(ctx, key, resp)
		return resp, nil
	})
	if shared {
		cacheSharedFetches.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*primary.Response[T]), nil
}

func (s *Source[T]) lookup(ctx context.Context, key Key, req primary.Request) (*primary.Response[T], bool) {
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Page cache read failed")
		}
		return nil, false
	}
	if req.TotalCountRequired && !entry.HasTotal {
		return nil, false
	}

	var resp primary.Response[T]
	if err := json.Unmarshal(entry.Data, &resp); err != nil {
		cacheErrors.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Discarding undecodable cache entry")
		return nil, false
	}

	s.logger.Debug().
		Int("from", req.From).
		Int("to", req.To).
		Dur("age", time.Since(entry.CachedAt)).
		Msg("Page cache hit")
	return &resp, true
}

func (s *Source[T]) save(ctx context.Context, key Key, resp *primary.Response[T]) {
	data, err := json.Marshal(resp)
	if err != nil {
		cacheErrors.WithLabelValues("encode").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Page not cacheable")
		return
	}

	now := time.Now()
	entry := &Entry{
		Data:     data,
		HasTotal: resp.HasTotal(),
		Expires:  now.Add(s.ttl),
		CachedAt: now,
	}
	if err := s.store.Set(ctx, key, entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Page cache write failed")
	}
}
