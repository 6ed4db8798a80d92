package model

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/uncover/pkg/fetch"
	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/Sternrassler/uncover/pkg/segment"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Model is the windowed view over a large or unbounded list of T.
type Model[T any] struct {
	coordinator *fetch.Coordinator[T]
	consumer    Consumer
	logger      zerolog.Logger

	// pageSize is read by segments and the coordinator without the model
	// lock.
	pageSize atomic.Int64

	mu          sync.RWMutex
	segments    map[int]*segment.Available[T]
	size        int
	query       primary.Query
	hasQuery    bool
	first       bool
	placeholder T
}

// New creates a model. source may be nil and attached later with SetSource;
// consumer may be nil.
func New[T any](source primary.DataSource[T], consumer Consumer, cfg Config[T]) (*Model[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultConfig[T]().PageSize
	}
	if consumer == nil {
		consumer = ConsumerFuncs{}
	}

	logger := log.With().Str("component", "model").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	m := &Model[T]{
		consumer:    consumer,
		logger:      logger,
		segments:    make(map[int]*segment.Available[T]),
		first:       true,
		placeholder: cfg.Placeholder,
	}
	m.pageSize.Store(int64(cfg.PageSize))

	coordinator, err := fetch.New[T](m, cfg.Fetch)
	if err != nil {
		return nil, err
	}
	m.coordinator = coordinator

	if source != nil {
		coordinator.SetSource(source)
	}
	return m, nil
}

// Coordinator exposes the fetch coordinator, for tuning lanes and delays.
func (m *Model[T]) Coordinator() *fetch.Coordinator[T] {
	return m.coordinator
}

// SetSource replaces the primary data source. Fetches of the previous source
// are discarded; cached pages are kept. Page 0 is requested when a query is
// set.
func (m *Model[T]) SetSource(source primary.DataSource[T]) {
	m.coordinator.SetSource(source)

	m.mu.RLock()
	resolved := m.resolvedLocked()
	hasQuery := m.hasQuery
	m.mu.RUnlock()

	m.coordinator.Restore(resolved)
	if hasQuery {
		m.requestPage(0)
	}
}

// PageSize implements segment.Owner.
func (m *Model[T]) PageSize() int {
	return int(m.pageSize.Load())
}

// Page implements segment.Owner.
func (m *Model[T]) Page(position int) int {
	return position / m.PageSize()
}

// Query returns the current query.
func (m *Model[T]) Query() primary.Query {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

// HasQuery reports whether SetQuery was called since the last state reset.
func (m *Model[T]) HasQuery() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasQuery
}

// FirstQueryResult reports whether no page has resolved for the current query.
func (m *Model[T]) FirstQueryResult() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.first
}

// Size returns the best known number of items. It only grows until the next
// query or reset.
func (m *Model[T]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Placeholder returns the value served for unknown positions.
func (m *Model[T]) Placeholder() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.placeholder
}

// SetPlaceholder changes the value served for unknown positions.
func (m *Model[T]) SetPlaceholder(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeholder = v
}

// SetQuery discards all cached data and fetch state, then requests page 0 of
// the new query.
func (m *Model[T]) SetQuery(q primary.Query) {
	m.mu.Lock()
	m.resetLocked()
	m.query = q
	m.hasQuery = true
	m.mu.Unlock()

	m.logger.Info().Str("query", q.String()).Msg("Query changed")
	m.requestPage(0)
}

// GetItem returns the item at position, or the placeholder if it is not
// known yet. A missing page is requested in the background.
func (m *Model[T]) GetItem(position int) T {
	m.mu.RLock()
	placeholder := m.placeholder
	if position < 0 {
		m.mu.RUnlock()
		return placeholder
	}
	page := m.Page(position)
	seg := m.segments[page]
	m.mu.RUnlock()

	if seg != nil {
		if item, ok := seg.Get(position); ok {
			return item
		}
		// Short last page or a page that came back empty.
		return placeholder
	}

	m.requestPage(page)
	return placeholder
}

func (m *Model[T]) requestPage(page int) {
	if !m.coordinator.AlreadyFetching(page) {
		m.coordinator.RequestData(page)
	}
}

// RetryPage fetches a failed or resolved page again. It reports false while
// the page is still queued or in flight.
func (m *Model[T]) RetryPage(page int) bool {
	if !m.coordinator.Forget(page) {
		return false
	}

	m.mu.Lock()
	delete(m.segments, page)
	cached := len(m.segments)
	m.mu.Unlock()
	modelSegmentsCached.Set(float64(cached))

	m.logger.Debug().Int("page", page).Msg("Retrying page")
	m.requestPage(page)
	return true
}

// NotifyVisibleArea reports the visible window [fromInclusive, toExclusive)
// so queued fetches outside of it can be dropped.
func (m *Model[T]) NotifyVisibleArea(fromInclusive, toExclusive int) {
	m.coordinator.NotifyVisibleArea(fromInclusive, toExclusive)
}

// DataAvailable implements segment.Host. Segments the coordinator no longer
// tracks belong to a discarded query and are ignored.
func (m *Model[T]) DataAvailable(seg *segment.Available[T]) {
	m.mu.Lock()
	if !m.coordinator.Covers(seg) {
		m.mu.Unlock()
		m.logger.Debug().Int("page", seg.Page()).Msg("Ignoring segment of discarded query")
		return
	}

	m.segments[seg.Page()] = seg
	if maxIndex := seg.MaxIndex(); maxIndex > m.size {
		m.size = maxIndex
	}
	first := m.first
	m.first = false
	query := m.query
	cached := len(m.segments)
	m.mu.Unlock()

	modelSegmentsCached.Set(float64(cached))

	from := seg.From()
	m.consumer.RangeChanged(from, seg.To()-from)
	if first {
		m.logger.Debug().Str("query", query.String()).Msg("First result for query")
		m.consumer.QuerySearchComplete(query)
	}
}

// Reset clears cached data, the size estimate and all fetch state. The query
// is kept.
func (m *Model[T]) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.logger.Info().Msg("Model reset")
}

func (m *Model[T]) resetLocked() {
	m.first = true
	m.size = 0
	m.segments = make(map[int]*segment.Available[T])
	m.coordinator.Reset()
	modelSegmentsCached.Set(0)
}

// LowMemory drops cached pages. The query, size estimate and outstanding
// fetches are kept; dropped pages are fetched again when read.
func (m *Model[T]) LowMemory() {
	m.mu.Lock()
	dropped := len(m.segments)
	m.segments = make(map[int]*segment.Available[T])
	m.coordinator.LowMemory()
	m.mu.Unlock()

	modelSegmentsCached.Set(0)
	m.logger.Info().Int("segments", dropped).Msg("Dropped cached segments on low memory")
}

// Segments returns the cached segments ordered by page.
func (m *Model[T]) Segments() []*segment.Available[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*segment.Available[T], 0, len(m.segments))
	for _, seg := range m.segments {
		out = append(out, seg)
	}
	slices.SortFunc(out, func(a, b *segment.Available[T]) int { return a.Page() - b.Page() })
	return out
}

func (m *Model[T]) resolvedLocked() []*segment.Available[T] {
	out := make([]*segment.Available[T], 0, len(m.segments))
	for _, seg := range m.segments {
		if seg.State() == segment.StateResolved {
			out = append(out, seg)
		}
	}
	return out
}

// Close stops fetching. The model can still serve cached items.
func (m *Model[T]) Close() {
	m.coordinator.Close()
}
