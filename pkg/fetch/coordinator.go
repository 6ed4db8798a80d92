package fetch

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/Sternrassler/uncover/pkg/segment"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Model is what the coordinator needs from the windowed model.
type Model[T any] interface {
	segment.Host[T]

	// Query returns the current query.
	Query() primary.Query

	// FirstQueryResult reports whether no page has resolved yet for the
	// current query.
	FirstQueryResult() bool
}

// Coordinator deduplicates, queues and dispatches page fetches.
type Coordinator[T any] struct {
	model  Model[T]
	config Config
	logger zerolog.Logger

	mu       sync.Mutex
	fetcher  Fetcher[T]
	coverage map[int]*segment.Available[T]
	queue    []primary.Request // top of the stack is the last element
	inflight map[int]struct{}
	lanes    []time.Time
	timer    *time.Timer
	resets   uint64
	closed   bool
}

// New creates a coordinator for model. A fetcher must be attached with
// SetSource or SetFetcher before requests are dispatched; until then they
// only queue.
func New[T any](model Model[T], cfg Config) (*Coordinator[T], error) {
	if model == nil {
		return nil, ErrNilModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := log.With().Str("component", "fetch-coordinator").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Coordinator[T]{
		model:    model,
		config:   cfg,
		logger:   logger,
		coverage: make(map[int]*segment.Available[T]),
		inflight: make(map[int]struct{}),
		lanes:    make([]time.Time, cfg.Lanes),
	}, nil
}

// SetSource binds the coordinator to a primary source through a new Bridge
// of the next generation. Pending state is discarded.
func (c *Coordinator[T]) SetSource(source primary.DataSource[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var generation uint64
	if c.fetcher != nil {
		generation = c.fetcher.Generation() + 1
		if old, ok := c.fetcher.(interface{ Close() }); ok {
			old.Close()
		}
	}
	c.resetLocked()
	c.fetcher = NewBridge[T](source, c, generation, c.logger)
}

// SetFetcher attaches a custom fetcher. Pending state is discarded.
func (c *Coordinator[T]) SetFetcher(f Fetcher[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	if old, ok := c.fetcher.(interface{ Close() }); ok && c.fetcher != f {
		old.Close()
	}
	c.fetcher = f
}

// SetLanes changes the number of concurrency lanes. Retained lanes keep
// their busy state, added lanes start idle and queued requests are served
// on them. Requests running on a removed lane complete normally.
func (c *Coordinator[T]) SetLanes(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == len(c.lanes) {
		return
	}
	lanes := make([]time.Time, n)
	copy(lanes, c.lanes)
	c.config.Lanes = n
	c.lanes = lanes
	c.servePendingLocked()
}

// Lanes returns the number of concurrency lanes.
func (c *Coordinator[T]) Lanes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lanes)
}

// SetDelayWhenPending changes how long a lane may stay busy before it is
// reused. An armed deferred dispatch is rescheduled for the new delay.
func (c *Coordinator[T]) SetDelayWhenPending(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.DelayWhenPending = d
	c.stopTimerLocked()
	c.servePendingLocked()
}

// DelayWhenPending returns the current pending delay.
func (c *Coordinator[T]) DelayWhenPending() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.DelayWhenPending
}

// Generation returns the generation of the current fetcher.
func (c *Coordinator[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetcher == nil {
		return 0
	}
	return c.fetcher.Generation()
}

// QueueLen returns the number of requests waiting for a lane.
func (c *Coordinator[T]) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// AlreadyFetching reports whether page is reserved or resolved.
func (c *Coordinator[T]) AlreadyFetching(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.coverage[page]
	return ok
}

// Covers reports whether seg is the segment currently registered for its page.
func (c *Coordinator[T]) Covers(seg *segment.Available[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coverage[seg.Page()] == seg
}

// RequestData reserves page and queues a request for it. It does nothing if
// the page is already covered.
func (c *Coordinator[T]) RequestData(page int) {
	for {
		c.mu.Lock()
		resets := c.resets
		if c.closed {
			c.mu.Unlock()
			return
		}
		if _, ok := c.coverage[page]; ok {
			c.mu.Unlock()
			fetchDeduplicatedTotal.Inc()
			return
		}
		c.mu.Unlock()

		// The model is only read without the coordinator lock held.
		seg := segment.NewAvailable[T](c.model, page)
		req := primary.NewRequest(page, seg.From(), seg.To(), c.model.Query(), c.model.FirstQueryResult())

		c.mu.Lock()
		if c.resets != resets {
			// A reset raced with us and the query may have changed.
			c.mu.Unlock()
			continue
		}
		if _, ok := c.coverage[page]; ok {
			c.mu.Unlock()
			fetchDeduplicatedTotal.Inc()
			return
		}

		c.coverage[page] = seg
		c.queue = append(c.queue, req)
		fetchRequestsTotal.Inc()
		c.logger.Debug().
			Int("page", page).
			Int("from", req.From).
			Int("to", req.To).
			Int("queue_depth", len(c.queue)).
			Msg("Page queued")

		c.servePendingLocked()
		c.mu.Unlock()
		return
	}
}

// ServePending dispatches queued requests while lanes are available.
func (c *Coordinator[T]) ServePending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servePendingLocked()
}

func (c *Coordinator[T]) servePendingLocked() {
	defer func() { fetchQueueDepth.Set(float64(len(c.queue))) }()

	if c.closed || c.fetcher == nil {
		return
	}

	for len(c.queue) > 0 {
		lane := c.bestLane()
		now := c.config.Clock()
		if !c.laneAvailable(lane, now) {
			c.scheduleLocked()
			return
		}

		req := c.queue[len(c.queue)-1]
		c.queue = c.queue[:len(c.queue)-1]

		c.lanes[lane] = now
		req.Lane = lane
		req.Sent = now
		req.Generation = c.fetcher.Generation()
		c.inflight[req.Page] = struct{}{}

		fetchDispatchedTotal.WithLabelValues(strconv.Itoa(lane)).Inc()
		c.logger.Debug().
			Int("page", req.Page).
			Int("lane", lane).
			Int("queue_depth", len(c.queue)).
			Msg("Dispatching request")

		c.fetcher.RequestData(req)
	}
}

// bestLane returns the lane with the smallest busy-since timestamp, lowest
// index on ties. Idle lanes have the zero time and always win.
func (c *Coordinator[T]) bestLane() int {
	best := 0
	for i := 1; i < len(c.lanes); i++ {
		if c.lanes[i].Before(c.lanes[best]) {
			best = i
		}
	}
	return best
}

func (c *Coordinator[T]) laneAvailable(lane int, now time.Time) bool {
	busySince := c.lanes[lane]
	return busySince.IsZero() || now.Sub(busySince) > c.config.DelayWhenPending
}

// scheduleLocked arms the deferred retry unless one is already armed.
func (c *Coordinator[T]) scheduleLocked() {
	if c.timer != nil {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(deferDelay(c.config.DelayWhenPending, c.config.TimerMargin), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timer != t {
			// Cancelled by a reset after it had already fired.
			return
		}
		c.timer = nil
		c.servePendingLocked()
	})
	c.timer = t
	fetchDeferredTotal.Inc()
}

// deferDelay is delay plus margin, saturated at the largest duration so an
// unbounded pending delay never wraps into an immediate timer.
func deferDelay(delay, margin time.Duration) time.Duration {
	d := delay + margin
	if d < delay {
		return math.MaxInt64
	}
	return d
}

func (c *Coordinator[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// stale reports whether req belongs to a discarded generation.
func (c *Coordinator[T]) staleLocked(req primary.Request) bool {
	return c.fetcher == nil || req.Generation != c.fetcher.Generation()
}

// freeLaneLocked marks the lane of req idle.
func (c *Coordinator[T]) freeLaneLocked(req primary.Request) {
	if req.Lane >= 0 && req.Lane < len(c.lanes) {
		c.lanes[req.Lane] = time.Time{}
	}
	delete(c.inflight, req.Page)
}

// DataAvailable implements Listener: it resolves the page of req and keeps
// draining the queue.
func (c *Coordinator[T]) DataAvailable(req primary.Request, resp *primary.Response[T]) {
	if resp == nil {
		c.DataUnavailable(req)
		return
	}

	// Computed before locking; see RequestData.
	page := c.model.Page(req.From)

	c.mu.Lock()
	if c.staleLocked(req) {
		c.mu.Unlock()
		fetchStaleResponsesTotal.Inc()
		c.logger.Debug().
			Int("page", req.Page).
			Uint64("generation", req.Generation).
			Msg("Dropping stale response")
		return
	}
	c.freeLaneLocked(req)

	seg, ok := c.coverage[page]
	if !ok {
		// Proactive response for a page nobody reserved.
		seg = segment.NewAvailable[T](c.model, page)
		c.coverage[page] = seg
	}
	c.mu.Unlock()

	fetchResultsTotal.WithLabelValues("available").Inc()

	// The segment notifies the model synchronously; the coordinator lock
	// must not be held so the consumer may request more pages.
	defer c.ServePending()
	if resp.HasTotal() {
		seg.DataProvidedWithMax(resp.Items, *resp.Total)
	} else {
		seg.DataProvided(resp.Items)
	}
}

// DataUnavailable implements Listener: the lane is freed and the page stays
// reserved but empty until it is explicitly requested again.
func (c *Coordinator[T]) DataUnavailable(req primary.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staleLocked(req) {
		fetchStaleResponsesTotal.Inc()
		return
	}
	c.freeLaneLocked(req)
	fetchResultsTotal.WithLabelValues("unavailable").Inc()

	if seg, ok := c.coverage[req.Page]; ok {
		seg.MarkFailed()
	}
	c.logger.Warn().
		Int("page", req.Page).
		Int("lane", req.Lane).
		Msg("Page unavailable")

	c.servePendingLocked()
}

// NotifyVisibleArea evicts queued requests that do not intersect
// [fromInclusive, toExclusive). Requests already dispatched are not affected.
func (c *Coordinator[T]) NotifyVisibleArea(fromInclusive, toExclusive int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.queue[:0]
	evicted := 0
	for _, req := range c.queue {
		if req.Intersects(fromInclusive, toExclusive) {
			kept = append(kept, req)
			continue
		}
		delete(c.coverage, req.Page)
		evicted++
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = primary.Request{}
	}
	c.queue = kept

	if evicted > 0 {
		fetchEvictedTotal.Add(float64(evicted))
		fetchQueueDepth.Set(float64(len(c.queue)))
		c.logger.Debug().
			Int("from", fromInclusive).
			Int("to", toExclusive).
			Int("evicted", evicted).
			Int("queue_depth", len(c.queue)).
			Msg("Evicted requests outside visible area")
	}
}

// Reset clears the queue and coverage, idles all lanes, cancels the deferred
// retry and moves to the next fetcher generation.
func (c *Coordinator[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	if c.fetcher != nil {
		c.fetcher = c.fetcher.Reset()
	}
	c.logger.Info().Uint64("resets", c.resets).Msg("Fetch state reset")
}

func (c *Coordinator[T]) resetLocked() {
	c.stopTimerLocked()
	c.queue = nil
	c.coverage = make(map[int]*segment.Available[T])
	c.inflight = make(map[int]struct{})
	c.lanes = make([]time.Time, len(c.lanes))
	c.resets++
	fetchQueueDepth.Set(0)
}

// LowMemory drops resolved pages from coverage so they can be fetched again.
// Queued and in-flight reservations are kept.
func (c *Coordinator[T]) LowMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued := make(map[int]struct{}, len(c.queue))
	for _, req := range c.queue {
		queued[req.Page] = struct{}{}
	}
	for page := range c.coverage {
		if _, ok := queued[page]; ok {
			continue
		}
		if _, ok := c.inflight[page]; ok {
			continue
		}
		delete(c.coverage, page)
	}
}

// Forget removes a page that is neither queued nor in flight from coverage,
// so the next request fetches it again. It reports whether the page was removed.
func (c *Coordinator[T]) Forget(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inflight[page]; ok {
		return false
	}
	for _, req := range c.queue {
		if req.Page == page {
			return false
		}
	}
	if _, ok := c.coverage[page]; !ok {
		return false
	}
	delete(c.coverage, page)
	return true
}

// Restore registers already resolved segments, for instance after the model
// state was restored, so they are not fetched again.
func (c *Coordinator[T]) Restore(segments []*segment.Available[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, seg := range segments {
		c.coverage[seg.Page()] = seg
	}
}

// Close stops dispatching and severs the current fetcher.
func (c *Coordinator[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	if closer, ok := c.fetcher.(interface{ Close() }); ok {
		closer.Close()
	}
}
