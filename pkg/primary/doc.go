// Package primary defines the contract between the windowed model and the
// slow, range-oriented source that actually owns the items.
//
// A source receives a Request describing one page ([From, To) plus the
// query) and blocks until it can answer with a Response. It never has to deal
// with concurrency, deduplication or scrolling: the fetch coordinator in
// pkg/fetch calls it off the caller's path, at most once per page, on a bounded
// number of lanes.
//
// Example:
//
//	src := primary.DataSourceFunc[string](func(ctx context.Context, req primary.Request) (*primary.Response[string], error) {
//		items, total, err := backend.Search(ctx, string(req.Query), req.From, req.To-req.From)
//		if err != nil {
//			return nil, err
//		}
//		return primary.NewResponseWithTotal(items, total), nil
//	})
//
// Returning an error or a nil response are equivalent: the page is reported as
// unavailable and the list keeps showing the placeholder for it.
package primary
