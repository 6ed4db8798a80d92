package primary

import (
	"fmt"
	"time"
)

// Query is the opaque, value-comparable search criterion handed to the source.
type Query string

// String returns the query text.
func (q Query) String() string {
	return string(q)
}

// Request asks the source for the items in [From, To) for Query.
type Request struct {
	// From is the first position of the range, inclusive.
	From int `json:"from"`

	// To is the end of the range, exclusive.
	To int `json:"to"`

	// Page is the page index the range was derived from.
	Page int `json:"page"`

	// Query is the query the items must match.
	Query Query `json:"query"`

	// TotalCountRequired is true while the total number of items for this
	// query is still unknown. A source may skip computing the total if false.
	TotalCountRequired bool `json:"total_count_required"`

	// Lane is the concurrency lane the request was dispatched on.
	Lane int `json:"-"`

	// Sent is when the request was handed to the source, zero if still queued.
	Sent time.Time `json:"-"`

	// Generation is the fetch epoch the request belongs to. Responses from an
	// older generation are dropped.
	Generation uint64 `json:"-"`
}

// NewRequest builds a request for [from, to).
func NewRequest(page, from, to int, query Query, totalCountRequired bool) Request {
	return Request{
		From:               from,
		To:                 to,
		Page:               page,
		Query:              query,
		TotalCountRequired: totalCountRequired,
	}
}

// Size returns the number of positions the request spans.
func (r Request) Size() int {
	return r.To - r.From
}

// Intersects reports whether the request range overlaps [fromInclusive, toExclusive).
func (r Request) Intersects(fromInclusive, toExclusive int) bool {
	return r.From < toExclusive && r.To > fromInclusive
}

func (r Request) String() string {
	if r.Sent.IsZero() {
		return fmt.Sprintf("%d..%d not sent ?%s", r.From, r.To, r.Query)
	}
	return fmt.Sprintf("%d..%d sent %s lane %d ?%s", r.From, r.To, r.Sent.Format(time.RFC3339Nano), r.Lane, r.Query)
}
