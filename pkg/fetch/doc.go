// Package fetch coordinates on-demand page fetching for the windowed model.
//
// The Coordinator owns three pieces of state, all guarded by one mutex:
//
//   - coverage: every page that is reserved (fetch outstanding) or resolved.
//     A page in coverage is never queued twice.
//   - the pending queue, served most-recent-first. In a scrolling list the
//     last requested page is the one closest to the viewport; older requests
//     from abandoned scroll positions starve and are eventually evicted by
//     NotifyVisibleArea.
//   - a fixed set of lanes, each holding the time its current request was
//     sent (zero when idle). A lane busy for longer than DelayWhenPending is
//     treated as idle again, so a stuck source cannot stall the list forever
//     at the price of exceeding the nominal lane count.
//
// The blocking call to the primary source runs on the Bridge, one goroutine
// per dispatched request, outside the coordinator lock. Each Bridge carries a
// generation; Reset replaces it with the next generation and results from the
// old one are dropped.
//
// Lock order: the model may call into the coordinator while holding its own
// lock, the coordinator never calls the model while holding its lock.
package fetch
