// Package model provides the windowed model a scrolling consumer reads from.
//
// The model maps positions to pages, serves items from its segment cache and
// asks the fetch coordinator for missing pages. GetItem never blocks: an
// unknown position yields the placeholder and the page is fetched in the
// background. When the page arrives the consumer is told which range changed
// and pulls the items again.
//
// Example:
//
//	m, err := model.New[string](source, model.ConsumerFuncs{
//		RangeChangedFunc: func(from, count int) { redraw(from, count) },
//	}, model.Config[string]{PageSize: 20, Placeholder: "loading"})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	m.SetQuery("books")
//	item := m.GetItem(42) // "loading" until page 2 arrives
//
// Locking: the model may call into the coordinator while holding its own lock,
// never the other way round. The consumer is always notified with no lock held,
// so it may call back into the model.
package model
