package ratelimit

import "errors"

// ErrBudgetExhausted is returned while the error budget is critical.
var ErrBudgetExhausted = errors.New("error budget exhausted")
