// Package segment describes page-aligned ranges of the logical list and the
// data fetched for them.
//
// A Segment never computes range math on its own: page size and the
// position-to-page mapping always come from its Owner (the model), resolved at
// call time. The owner reference is not part of a segment's identity and is
// not serialized; restored segments must be re-attached with Attach.
package segment

import "fmt"

// Owner provides the page geometry segments are computed from.
type Owner interface {
	// PageSize returns the number of positions in one page.
	PageSize() int

	// Page returns the page index for position.
	Page(position int) int
}

// Segment is the range descriptor of one page. Two segments are equal when
// they describe the same page.
type Segment struct {
	page  int
	owner Owner
}

// New creates the segment for page, bound to owner.
func New(owner Owner, page int) Segment {
	return Segment{page: page, owner: owner}
}

// Page returns the page index.
func (s Segment) Page() int {
	return s.page
}

// From returns the start of the range, inclusive.
func (s Segment) From() int {
	return s.owner.PageSize() * s.page
}

// To returns the end of the range, exclusive.
func (s Segment) To() int {
	return s.owner.PageSize() * (s.page + 1)
}

// Covered reports whether position belongs to this segment's page.
func (s Segment) Covered(position int) bool {
	return s.owner.Page(position) == s.page
}

// Equal reports whether both segments describe the same page.
func (s Segment) Equal(other Segment) bool {
	return s.page == other.page
}

func (s Segment) String() string {
	return fmt.Sprintf("page %d", s.page)
}
