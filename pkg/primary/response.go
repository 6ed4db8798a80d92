package primary

// Response carries one page of items and, optionally, the total number of
// items matching the query.
type Response[T any] struct {
	// Items are the items for the requested range. A page at the end of the
	// list may be shorter than requested.
	Items []T `json:"items"`

	// Total is the total number of items for the query, nil if unknown.
	Total *int `json:"total,omitempty"`
}

// NewResponse builds a response without a total count. The model will make
// the best guess from the number of items.
func NewResponse[T any](items []T) *Response[T] {
	return &Response[T]{Items: items}
}

// NewResponseWithTotal builds a response that also reports the total number
// of items for the query, which can be much larger than one page.
func NewResponseWithTotal[T any](items []T, total int) *Response[T] {
	return &Response[T]{Items: items, Total: &total}
}

// HasTotal reports whether the response carries a total count.
func (r *Response[T]) HasTotal() bool {
	return r != nil && r.Total != nil
}

// MaxIndex returns the best known number of items spanned starting at 0,
// given that the page starts at from: the explicit total if present,
// otherwise from + len(Items).
func (r *Response[T]) MaxIndex(from int) int {
	if r.HasTotal() {
		return *r.Total
	}
	return from + len(r.Items)
}
