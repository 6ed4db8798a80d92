package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds tracker configuration.
type Config struct {
	// Rate is the sustained number of requests per second. Zero disables
	// the token bucket.
	Rate rate.Limit

	// Burst is the token bucket size.
	Burst int

	// ThrottleDelay is how long a request waits while the budget is low.
	ThrottleDelay time.Duration

	// Thresholds classify the budget. The zero value selects
	// DefaultThresholds.
	Thresholds Thresholds

	// Redis stores the budget. Nil keeps it in memory.
	Redis *redis.Client

	// Namespace separates the budgets of different sources sharing one
	// Redis. Defaults to "default".
	Namespace string

	// Logger overrides the component logger.
	Logger *zerolog.Logger

	// Clock overrides time.Now (tests).
	Clock func() time.Time
}

// DefaultConfig returns 10 requests per second with a burst of 5.
func DefaultConfig() Config {
	return Config{
		Rate:          10,
		Burst:         5,
		ThrottleDelay: time.Second,
		Thresholds:    DefaultThresholds(),
		Namespace:     "default",
	}
}

// Tracker follows the source's error budget and gates requests on it.
type Tracker struct {
	redis      *redis.Client
	key        string
	limiter    *rate.Limiter
	throttle   time.Duration
	thresholds Thresholds
	clock      func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	local    Budget
	level    Level
	watchers []func(Level)
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Rate < 0 {
		return nil, fmt.Errorf("rate must be >= 0 (got %v)", cfg.Rate)
	}
	if cfg.Burst < 0 {
		return nil, fmt.Errorf("burst must be >= 0 (got %d)", cfg.Burst)
	}
	if cfg.ThrottleDelay < 0 {
		return nil, fmt.Errorf("throttle_delay must be >= 0 (got %s)", cfg.ThrottleDelay)
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	limit := cfg.Rate
	if limit == 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = 1
	}

	logger := log.With().Str("component", "ratelimit").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Tracker{
		redis:      cfg.Redis,
		key:        "uncover:budget:" + cfg.Namespace,
		limiter:    rate.NewLimiter(limit, burst),
		throttle:   cfg.ThrottleDelay,
		thresholds: cfg.Thresholds,
		clock:      cfg.Clock,
		logger:     logger.With().Str("namespace", cfg.Namespace).Logger(),
	}, nil
}

// Watch registers fn to be called with the new level whenever the budget
// changes level, including when an exhausted window ends. fn runs on the
// goroutine that observed the change and must not block.
func (t *Tracker) Watch(fn func(Level)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, fn)
}

// Level returns the level of the current budget.
func (t *Tracker) Level(ctx context.Context) (Level, error) {
	b, err := t.Budget(ctx)
	if err != nil {
		return LevelHealthy, err
	}
	return b.Level(t.thresholds), nil
}

// Budget returns the budget of the current window, or the zero Budget if
// none was reported since the last one ended.
func (t *Tracker) Budget(ctx context.Context) (Budget, error) {
	b, err := t.load(ctx)
	if err != nil {
		return Budget{}, err
	}
	if b.expired(t.clock()) {
		b = Budget{}
	}
	t.observe(b)
	return b, nil
}

// UpdateFromHeaders records the budget reported with a source response.
// Responses without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderErrorLimitRemain)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderErrorLimitRemain, err)
	}

	resetStr := headers.Get(HeaderErrorLimitReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderErrorLimitReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderErrorLimitReset, err)
	}
	window := time.Duration(max(resetSeconds, 1)) * time.Second

	now := t.clock()
	b := Budget{
		Remaining:  remain,
		ResetAt:    now.Add(window),
		ObservedAt: now,
	}
	if err := t.save(ctx, b, window); err != nil {
		return err
	}

	errorsRemaining.Set(float64(remain))
	t.observe(b)
	return nil
}

// Wait blocks until a request may be sent. While the budget is exhausted it
// fails at once with an error wrapping ErrBudgetExhausted; while it is low
// the request is delayed by the throttle delay. The token bucket applies in
// every case. A budget that cannot be read denies the request.
func (t *Tracker) Wait(ctx context.Context) error {
	b, err := t.Budget(ctx)
	if err != nil {
		return fmt.Errorf("read error budget: %w", err)
	}

	switch b.Level(t.thresholds) {
	case LevelExhausted:
		blocksTotal.Inc()
		return fmt.Errorf("%w: %d left, resets in %s",
			ErrBudgetExhausted, b.Remaining, b.ResetIn(t.clock()).Round(time.Second))
	case LevelLow:
		if t.throttle > 0 {
			throttlesTotal.Inc()
			timer := time.NewTimer(t.throttle)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// observe updates the known level and notifies watchers on a change.
func (t *Tracker) observe(b Budget) {
	level := b.Level(t.thresholds)

	t.mu.Lock()
	if level == t.level {
		t.mu.Unlock()
		return
	}
	previous := t.level
	t.level = level
	watchers := append([]func(Level){}, t.watchers...)
	t.mu.Unlock()

	event := t.logger.Debug()
	switch level {
	case LevelExhausted:
		event = t.logger.Error()
	case LevelLow:
		event = t.logger.Warn()
	}
	event.
		Str("level", level.String()).
		Str("previous", previous.String()).
		Int("errors_remaining", b.Remaining).
		Time("reset_at", b.ResetAt).
		Msg("Error budget level changed")

	for _, fn := range watchers {
		fn(level)
	}
}

func (t *Tracker) load(ctx context.Context) (Budget, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.local, nil
	}

	raw, err := t.redis.Get(ctx, t.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Budget{}, nil
	}
	if err != nil {
		return Budget{}, fmt.Errorf("get budget: %w", err)
	}
	var b Budget
	if err := json.Unmarshal(raw, &b); err != nil {
		return Budget{}, fmt.Errorf("decode budget: %w", err)
	}
	return b, nil
}

// save stores b; the Redis key expires with the window.
func (t *Tracker) save(ctx context.Context, b Budget, window time.Duration) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = b
		t.mu.Unlock()
		return nil
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	if err := t.redis.Set(ctx, t.key, raw, window).Err(); err != nil {
		return fmt.Errorf("store budget in redis: %w", err)
	}
	return nil
}
