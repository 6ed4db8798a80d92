package segment

import (
	"fmt"
	"sync"
)

// State tracks where a page is in its fetch lifecycle.
type State int

const (
	// StatePending means the page is reserved and no usable response has arrived.
	StatePending State = iota

	// StateResolved means items (possibly fewer than a page) are stored.
	StateResolved

	// StateFailed means the fetch failed. The page stays reserved and empty
	// until it is explicitly requested again.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Host is the owner that also wants to hear about resolved segments.
type Host[T any] interface {
	Owner

	// DataAvailable is called synchronously whenever the segment receives data.
	DataAvailable(s *Available[T])
}

// Available is a segment together with the items fetched for it.
//
// maxIndex is the best known number of real items counted from position 0:
// zero while nothing is known, otherwise within [From, To] unless the source
// reported a larger grand total.
type Available[T any] struct {
	Segment

	host Host[T]

	mu       sync.RWMutex
	items    []T
	maxIndex int
	state    State
}

// NewAvailable creates an empty, pending segment for page.
func NewAvailable[T any](host Host[T], page int) *Available[T] {
	return &Available[T]{
		Segment: New(host, page),
		host:    host,
	}
}

// Attach re-binds the segment to host, for instance after it was restored
// from a snapshot.
func (a *Available[T]) Attach(host Host[T]) {
	a.mu.Lock()
	a.host = host
	a.Segment.owner = host
	a.mu.Unlock()
}

// Get returns the item at position and true, or the zero value and false
// when position is outside the segment or beyond the stored items.
func (a *Available[T]) Get(position int) (T, bool) {
	var unknown T

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.items == nil || a.owner == nil || !a.Covered(position) {
		return unknown, false
	}
	index := position - a.From()
	if index < 0 || index >= len(a.items) {
		return unknown, false
	}
	return a.items[index], true
}

// DataProvided stores items and guesses maxIndex as From + len(items), then
// notifies the host. A nil slice is a failure signal: the segment is emptied
// and maxIndex drops back to 0.
func (a *Available[T]) DataProvided(items []T) {
	if items == nil {
		a.DataProvidedWithMax(nil, 0)
		return
	}
	a.DataProvidedWithMax(items, a.From()+len(items))
}

// DataProvidedWithMax stores items with an explicit maxIndex, then notifies
// the host. A nil slice resets the segment like DataProvided(nil).
func (a *Available[T]) DataProvidedWithMax(items []T, maxIndex int) {
	a.mu.Lock()
	if items == nil {
		a.items = nil
		a.maxIndex = 0
		a.state = StatePending
	} else {
		a.items = items
		a.maxIndex = maxIndex
		a.state = StateResolved
	}
	host := a.host
	a.mu.Unlock()

	if host != nil {
		host.DataAvailable(a)
	}
}

// MarkFailed records a failed fetch without touching stored items and
// without notifying the host.
func (a *Available[T]) MarkFailed() {
	a.mu.Lock()
	if a.state == StatePending {
		a.state = StateFailed
	}
	a.mu.Unlock()
}

// MaxIndex returns the best known item count contributed by this segment.
func (a *Available[T]) MaxIndex() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxIndex
}

// State returns the fetch state of the segment.
func (a *Available[T]) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Len returns the number of stored items.
func (a *Available[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Items returns a copy of the stored items, nil if none.
func (a *Available[T]) Items() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.items == nil {
		return nil
	}
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Available[T]) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fmt.Sprintf("page %d items %d max %d %s", a.page, len(a.items), a.maxIndex, a.state)
}
