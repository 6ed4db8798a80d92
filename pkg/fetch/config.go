package fetch

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// NoPendingDelay is the DelayWhenPending value that disables waiting for
// busy lanes: every queued request is dispatched at once.
const NoPendingDelay time.Duration = -1

// Config holds coordinator configuration.
type Config struct {
	// Lanes is the number of requests that may be outstanding at once.
	Lanes int

	// DelayWhenPending is how long a lane may stay busy before it is
	// considered idle again. Zero selects the default; use NoPendingDelay
	// to reuse busy lanes right away.
	DelayWhenPending time.Duration

	// TimerMargin is added to DelayWhenPending when scheduling a deferred
	// retry, so the retry fires after the lane has actually expired.
	TimerMargin time.Duration

	// Logger overrides the component logger.
	Logger *zerolog.Logger

	// Clock overrides time.Now (tests).
	Clock func() time.Time
}

// DefaultConfig returns the default configuration: 2 lanes, 5s pending delay.
func DefaultConfig() Config {
	return Config{
		Lanes:            2,
		DelayWhenPending: 5 * time.Second,
		TimerMargin:      100 * time.Millisecond,
	}
}

// Validate checks the configuration for values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Lanes < 0 {
		return fmt.Errorf("lanes must be >= 0 (got %d)", c.Lanes)
	}
	if c.DelayWhenPending < 0 && c.DelayWhenPending != NoPendingDelay {
		return fmt.Errorf("delay_when_pending must be >= 0 (got %s)", c.DelayWhenPending)
	}
	if c.TimerMargin < 0 {
		return fmt.Errorf("timer_margin must be >= 0 (got %s)", c.TimerMargin)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Lanes == 0 {
		c.Lanes = def.Lanes
	}
	switch c.DelayWhenPending {
	case 0:
		c.DelayWhenPending = def.DelayWhenPending
	case NoPendingDelay:
		c.DelayWhenPending = 0
	}
	if c.TimerMargin == 0 {
		c.TimerMargin = def.TimerMargin
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
