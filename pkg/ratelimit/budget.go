// Package ratelimit gates requests to a primary data source.
//
// A token bucket bounds the request rate. On top of it the tracker follows
// the error budget the source reports in the X-Uncover-Error-Limit-Remain and
// X-Uncover-Error-Limit-Reset response headers. A low budget throttles
// requests and lets watchers narrow the fetch lanes of a model; an exhausted
// budget fails requests until the window resets, which the model sees as
// unavailable pages it can retry later.
//
// The budget lives in Redis when a client is configured, so processes using
// the same source share it; otherwise it is kept in memory.
package ratelimit

import (
	"fmt"
	"time"
)

// Header names of the error budget.
const (
	HeaderErrorLimitRemain = "X-Uncover-Error-Limit-Remain"
	HeaderErrorLimitReset  = "X-Uncover-Error-Limit-Reset"
)

// Level classifies a budget.
type Level int

const (
	LevelHealthy Level = iota
	LevelLow
	LevelExhausted
)

func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelLow:
		return "low"
	case LevelExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Thresholds map the remaining errors of a window to a Level.
type Thresholds struct {
	// Exhausted: fewer remaining errors than this fail every request.
	Exhausted int

	// Low: fewer remaining errors than this throttle requests.
	Low int
}

// DefaultThresholds returns exhausted below 5 and low below 20.
func DefaultThresholds() Thresholds {
	return Thresholds{Exhausted: 5, Low: 20}
}

// Validate checks that the thresholds are ordered.
func (th Thresholds) Validate() error {
	if th.Exhausted < 0 {
		return fmt.Errorf("exhausted threshold must be >= 0 (got %d)", th.Exhausted)
	}
	if th.Low < th.Exhausted {
		return fmt.Errorf("low threshold %d below exhausted threshold %d", th.Low, th.Exhausted)
	}
	return nil
}

// Budget is the error budget of the current window. The zero Budget means
// the source has not reported one since the last window ended.
type Budget struct {
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	ObservedAt time.Time `json:"observed_at"`
}

// Reported reports whether b came from the source.
func (b Budget) Reported() bool {
	return !b.ResetAt.IsZero()
}

// Level classifies b. An unreported budget is healthy.
func (b Budget) Level(th Thresholds) Level {
	switch {
	case !b.Reported():
		return LevelHealthy
	case b.Remaining < th.Exhausted:
		return LevelExhausted
	case b.Remaining < th.Low:
		return LevelLow
	default:
		return LevelHealthy
	}
}

// ResetIn returns the time left in the window at now, never negative.
func (b Budget) ResetIn(now time.Time) time.Duration {
	if !b.Reported() || !b.ResetAt.After(now) {
		return 0
	}
	return b.ResetAt.Sub(now)
}

// expired reports whether the window of b has ended at now.
func (b Budget) expired(now time.Time) bool {
	return b.Reported() && !now.Before(b.ResetAt)
}

// LanesFor returns how many fetch lanes a model should use at level, given
// it is configured for max. A low or exhausted budget leaves one lane.
func LanesFor(level Level, max int) int {
	if max < 1 {
		max = 1
	}
	if level == LevelHealthy {
		return max
	}
	return 1
}
