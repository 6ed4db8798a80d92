package fetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/rs/zerolog"
)

// Listener receives fetch completions.
type Listener[T any] interface {
	// DataAvailable reports a response for req.
	DataAvailable(req primary.Request, resp *primary.Response[T])

	// DataUnavailable reports that req failed.
	DataUnavailable(req primary.Request)
}

// Fetcher hands requests to a primary source asynchronously.
//
// RequestData is called with the coordinator lock held: it must return
// quickly and must not report back synchronously.
type Fetcher[T any] interface {
	RequestData(req primary.Request)

	// Reset returns a fresh fetcher of the next generation bound to the same
	// listener. The receiver stops delivering.
	Reset() Fetcher[T]

	// Generation identifies the fetch epoch this fetcher delivers for.
	Generation() uint64
}

// Bridge runs the blocking primary source call on its own goroutine and
// reports back to the listener. Every bridge is tagged with a generation;
// once reset or closed it never delivers again, even for fetches that were
// already running.
type Bridge[T any] struct {
	source     primary.DataSource[T]
	listener   Listener[T]
	generation uint64
	base       zerolog.Logger
	logger     zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	severed atomic.Bool
	wg      sync.WaitGroup
}

// NewBridge creates the bridge for generation.
func NewBridge[T any](source primary.DataSource[T], listener Listener[T], generation uint64, logger zerolog.Logger) *Bridge[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge[T]{
		source:     source,
		listener:   listener,
		generation: generation,
		base:       logger,
		logger:     logger.With().Uint64("generation", generation).Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Generation implements Fetcher.
func (b *Bridge[T]) Generation() uint64 {
	return b.generation
}

// RequestData implements Fetcher.
func (b *Bridge[T]) RequestData(req primary.Request) {
	if b.severed.Load() {
		return
	}
	b.wg.Add(1)
	go b.run(req)
}

func (b *Bridge[T]) run(req primary.Request) {
	defer b.wg.Done()

	start := time.Now()
	resp, err := b.fetch(req)
	fetchDuration.Observe(time.Since(start).Seconds())

	if b.severed.Load() {
		fetchStaleResponsesTotal.Inc()
		b.logger.Debug().
			Int("page", req.Page).
			Msg("Dropping result of discarded generation")
		return
	}

	if err != nil {
		b.logger.Warn().
			Err(err).
			Int("page", req.Page).
			Int("from", req.From).
			Int("to", req.To).
			Dur("duration", time.Since(start)).
			Msg("Primary fetch failed")
		b.listener.DataUnavailable(req)
		return
	}

	b.logger.Debug().
		Int("page", req.Page).
		Int("items", len(resp.Items)).
		Dur("duration", time.Since(start)).
		Msg("Primary fetch complete")
	b.listener.DataAvailable(req, resp)
}

// fetch calls the source, turning panics and empty answers into errors.
func (b *Bridge[T]) fetch(req primary.Request) (resp *primary.Response[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			fetchResultsTotal.WithLabelValues("panic").Inc()
			resp, err = nil, fmt.Errorf("%w: %v", ErrSourcePanic, r)
		}
	}()

	resp, err = b.source.Fetch(b.ctx, req)
	if err == nil && resp == nil {
		err = primary.ErrNoResponse
	}
	return resp, err
}

// Reset implements Fetcher. The new bridge shares source and listener.
func (b *Bridge[T]) Reset() Fetcher[T] {
	next := NewBridge(b.source, b.listener, b.generation+1, b.base)
	b.Close()
	return next
}

// Close severs the bridge and cancels the context passed to running fetches.
func (b *Bridge[T]) Close() {
	b.severed.Store(true)
	b.cancel()
}

// Wait blocks until all fetches started by this bridge have returned.
func (b *Bridge[T]) Wait() {
	b.wg.Wait()
}
