package model

import "github.com/Sternrassler/uncover/pkg/primary"

// Consumer is notified about model changes. Calls arrive on fetch worker
// goroutines, possibly for ranges that were never explicitly requested.
type Consumer interface {
	// RangeChanged reports that count positions starting at from changed.
	RangeChanged(from, count int)

	// QuerySearchComplete fires once per query, on its first resolved page.
	QuerySearchComplete(q primary.Query)
}

// ConsumerFuncs adapts plain functions to Consumer. Nil fields are ignored.
type ConsumerFuncs struct {
	RangeChangedFunc        func(from, count int)
	QuerySearchCompleteFunc func(q primary.Query)
}

// RangeChanged implements Consumer.
func (f ConsumerFuncs) RangeChanged(from, count int) {
	if f.RangeChangedFunc != nil {
		f.RangeChangedFunc(from, count)
	}
}

// QuerySearchComplete implements Consumer.
func (f ConsumerFuncs) QuerySearchComplete(q primary.Query) {
	if f.QuerySearchCompleteFunc != nil {
		f.QuerySearchCompleteFunc(q)
	}
}
