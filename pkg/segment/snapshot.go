package segment

// Snapshot is the serializable form of an Available segment. The host is
// not part of it.
type Snapshot[T any] struct {
	Page     int   `json:"page"`
	Items    []T   `json:"items"`
	MaxIndex int   `json:"max_index"`
	State    State `json:"state"`
}

// Snapshot captures the segment's data.
func (a *Available[T]) Snapshot() Snapshot[T] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot[T]{
		Page:     a.page,
		Items:    a.items,
		MaxIndex: a.maxIndex,
		State:    a.state,
	}
}

// Restore rebuilds a segment from a snapshot and attaches it to host. The
// host is not notified.
func Restore[T any](host Host[T], s Snapshot[T]) *Available[T] {
	a := NewAvailable(host, s.Page)
	a.items = s.Items
	a.maxIndex = s.MaxIndex
	a.state = s.State
	return a
}
