package model

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/uncover/pkg/fetch"
	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/Sternrassler/uncover/pkg/segment"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu         sync.Mutex
	requests   []primary.Request
	generation uint64
	resets     int
}

func (f *stubFetcher) RequestData(req primary.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *stubFetcher) Reset() fetch.Fetcher[string] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.generation++
	return f
}

func (f *stubFetcher) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

func (f *stubFetcher) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Page)
	}
	return out
}

func (f *stubFetcher) find(t *testing.T, page int) primary.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Page == page {
			return f.requests[i]
		}
	}
	t.Fatalf("no request for page %d", page)
	return primary.Request{}
}

type recordingConsumer struct {
	mu       sync.Mutex
	changed  [][2]int
	complete []primary.Query
}

func (c *recordingConsumer) RangeChanged(from, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changed = append(c.changed, [2]int{from, count})
}

func (c *recordingConsumer) QuerySearchComplete(q primary.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.complete = append(c.complete, q)
}

func (c *recordingConsumer) completions() []primary.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]primary.Query(nil), c.complete...)
}

func items(from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("p.%d", i))
	}
	return out
}

func newTestModel(t *testing.T, lanes int) (*Model[string], *stubFetcher, *recordingConsumer) {
	t.Helper()

	logger := zerolog.Nop()
	consumer := &recordingConsumer{}
	m, err := New[string](nil, consumer, Config[string]{
		Logger: &logger,
		Fetch:  fetch.Config{Lanes: lanes, DelayWhenPending: time.Hour, Logger: &logger},
	})
	require.NoError(t, err)

	f := &stubFetcher{}
	m.Coordinator().SetFetcher(f)
	t.Cleanup(m.Close)
	return m, f, consumer
}

// deliver answers the latest request for page with a full page of items.
func deliver(t *testing.T, m *Model[string], f *stubFetcher, page int, total *int) {
	t.Helper()
	req := f.find(t, page)
	m.Coordinator().DataAvailable(req, &primary.Response[string]{Items: items(req.From, req.To), Total: total})
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New[string](nil, nil, Config[string]{PageSize: -1}); err == nil {
		t.Error("New() should reject a negative page size")
	}

	m, err := New[string](nil, nil, Config[string]{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Close()
	if m.PageSize() != 10 {
		t.Errorf("PageSize() = %d, want 10", m.PageSize())
	}
}

func TestModel_PageMath(t *testing.T) {
	for _, pageSize := range []int{1, 2, 10, 37} {
		m, err := New[string](nil, nil, Config[string]{PageSize: pageSize})
		require.NoError(t, err)

		for pos := 0; pos < 200; pos++ {
			page := m.Page(pos)
			if page != pos/pageSize {
				t.Fatalf("pageSize %d: Page(%d) = %d, want %d", pageSize, pos, page, pos/pageSize)
			}
			seg := segment.New(m, page)
			if seg.From() != page*pageSize || seg.To() != seg.From()+pageSize {
				t.Fatalf("pageSize %d: page %d range = [%d, %d)", pageSize, page, seg.From(), seg.To())
			}
		}
		m.Close()
	}
}

func TestModel_GetItemRequesting(t *testing.T) {
	m, f, consumer := newTestModel(t, 100)

	if got := m.GetItem(20); got != "" {
		t.Errorf("GetItem(20) = %q, want zero placeholder", got)
	}
	if diff := cmp.Diff([]int{2}, f.pages()); diff != "" {
		t.Fatalf("requested pages mismatch (-want +got):\n%s", diff)
	}

	m.SetPlaceholder("loading")
	if got := m.GetItem(30); got != "loading" {
		t.Errorf("GetItem(30) = %q, want loading", got)
	}

	deliver(t, m, f, 2, nil)
	if got := m.GetItem(19); got != "loading" {
		t.Errorf("GetItem(19) = %q, want loading", got)
	}
	if got := m.GetItem(20); got != "p.20" {
		t.Errorf("GetItem(20) = %q, want p.20", got)
	}
	if got := m.GetItem(30); got != "loading" {
		t.Errorf("GetItem(30) = %q, want loading", got)
	}
	if m.Size() != 30 {
		t.Errorf("Size() = %d, want 30", m.Size())
	}

	deliver(t, m, f, 3, nil)
	if got := m.GetItem(35); got != "p.35" {
		t.Errorf("GetItem(35) = %q, want p.35", got)
	}
	if m.Size() != 40 {
		t.Errorf("Size() = %d, want 40", m.Size())
	}

	consumer.mu.Lock()
	changed := append([][2]int(nil), consumer.changed...)
	consumer.mu.Unlock()
	if diff := cmp.Diff([][2]int{{20, 10}, {30, 10}}, changed); diff != "" {
		t.Errorf("changed ranges mismatch (-want +got):\n%s", diff)
	}

	m.Reset()
	if got := m.GetItem(30); got != "loading" {
		t.Errorf("after Reset GetItem(30) = %q, want loading", got)
	}
	if m.Size() != 0 {
		t.Errorf("after Reset Size() = %d, want 0", m.Size())
	}
	if f.resets != 1 {
		t.Errorf("fetcher resets = %d, want 1", f.resets)
	}
}

func TestModel_NoRepetitiveFetch(t *testing.T) {
	m, f, _ := newTestModel(t, 100)

	m.GetItem(20)
	m.GetItem(21)
	m.GetItem(29)

	if diff := cmp.Diff([]int{2}, f.pages()); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}

	deliver(t, m, f, 2, nil)
	m.GetItem(25)
	m.GetItem(300)
	if diff := cmp.Diff([]int{2, 30}, f.pages()); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_SetQuery(t *testing.T) {
	m, f, _ := newTestModel(t, 100)

	m.GetItem(20)
	deliver(t, m, f, 2, nil)
	require.Equal(t, 30, m.Size())

	m.SetQuery("abc")

	if m.Size() != 0 {
		t.Errorf("Size() = %d, want 0", m.Size())
	}
	if len(m.Segments()) != 0 {
		t.Errorf("Segments() = %d, want empty cache", len(m.Segments()))
	}
	if !m.HasQuery() || m.Query() != "abc" {
		t.Errorf("Query() = %q, HasQuery() = %v", m.Query(), m.HasQuery())
	}

	req := f.find(t, 0)
	if req.Query != "abc" || !req.TotalCountRequired {
		t.Errorf("page 0 request = %+v, want query abc with total count required", req)
	}
	if req.Generation != 1 {
		t.Errorf("page 0 generation = %d, want 1", req.Generation)
	}
	if got := m.GetItem(0); got != "" {
		t.Errorf("GetItem(0) = %q, want placeholder", got)
	}
}

func TestModel_SearchCompleteOnce(t *testing.T) {
	m, f, consumer := newTestModel(t, 100)

	m.SetQuery("first")
	m.GetItem(15)
	deliver(t, m, f, 0, nil)
	deliver(t, m, f, 1, nil)

	if diff := cmp.Diff([]primary.Query{"first"}, consumer.completions()); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}
	if m.FirstQueryResult() {
		t.Error("FirstQueryResult() = true after results arrived")
	}

	m.SetQuery("second")
	deliver(t, m, f, 0, nil)
	if diff := cmp.Diff([]primary.Query{"first", "second"}, consumer.completions()); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_StaleSegmentIgnored(t *testing.T) {
	m, f, consumer := newTestModel(t, 100)

	m.SetQuery("old")
	m.GetItem(20)
	old := f.find(t, 2)

	m.SetQuery("new")
	m.Coordinator().DataAvailable(old, primary.NewResponse(items(20, 30)))

	if m.Size() != 0 {
		t.Errorf("Size() = %d, stale page must not count", m.Size())
	}
	if len(consumer.completions()) != 0 {
		t.Error("stale page fired search complete")
	}

	// A segment the coordinator does not know about is ignored too.
	orphan := segment.NewAvailable[string](m, 5)
	orphan.DataProvided(items(50, 60))
	if got := m.GetItem(55); got != "" {
		t.Errorf("GetItem(55) = %q, orphan segment must not be cached", got)
	}
}

func TestModel_SizeMonotonic(t *testing.T) {
	m, f, _ := newTestModel(t, 100)

	m.GetItem(0)
	m.GetItem(20)
	total := 777
	deliver(t, m, f, 0, &total)
	if m.Size() != 777 {
		t.Fatalf("Size() = %d, want 777", m.Size())
	}

	// Out-of-order completion with a smaller guess does not shrink the size.
	deliver(t, m, f, 2, nil)
	if m.Size() != 777 {
		t.Errorf("Size() = %d, want 777", m.Size())
	}
}

func TestModel_ShortPage(t *testing.T) {
	m, f, _ := newTestModel(t, 100)
	m.SetPlaceholder("loading")

	m.GetItem(20)
	req := f.find(t, 2)
	m.Coordinator().DataAvailable(req, primary.NewResponse(items(20, 25)))

	if got := m.GetItem(24); got != "p.24" {
		t.Errorf("GetItem(24) = %q, want p.24", got)
	}
	if got := m.GetItem(25); got != "loading" {
		t.Errorf("GetItem(25) = %q, want loading", got)
	}
	if m.Size() != 25 {
		t.Errorf("Size() = %d, want 25", m.Size())
	}
}

func TestModel_NullItemsRevert(t *testing.T) {
	m, f, _ := newTestModel(t, 100)
	m.SetPlaceholder("loading")

	m.GetItem(20)
	deliver(t, m, f, 2, nil)
	require.Equal(t, "p.20", m.GetItem(20))

	segs := m.Segments()
	require.Len(t, segs, 1)
	segs[0].DataProvided(nil)

	if got := m.GetItem(20); got != "loading" {
		t.Errorf("GetItem(20) = %q, want loading after nil items", got)
	}
	if segs[0].MaxIndex() != 0 {
		t.Errorf("MaxIndex() = %d, want 0", segs[0].MaxIndex())
	}
	if !m.Coordinator().AlreadyFetching(2) {
		t.Error("reservation must survive a nil update")
	}
	if diff := cmp.Diff([]int{2}, f.pages()); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_LowMemory(t *testing.T) {
	m, f, _ := newTestModel(t, 100)

	m.SetQuery("q")
	deliver(t, m, f, 0, nil)
	m.GetItem(20) // still in flight

	m.LowMemory()

	if len(m.Segments()) != 0 {
		t.Errorf("Segments() = %d after LowMemory, want 0", len(m.Segments()))
	}
	if m.Query() != "q" {
		t.Errorf("Query() = %q, want q", m.Query())
	}
	if m.Size() != 10 {
		t.Errorf("Size() = %d, want 10", m.Size())
	}

	// The outstanding page is still delivered.
	deliver(t, m, f, 2, nil)
	if got := m.GetItem(20); got != "p.20" {
		t.Errorf("GetItem(20) = %q, want p.20", got)
	}

	// The dropped page is fetched again.
	m.GetItem(0)
	if diff := cmp.Diff([]int{0, 2, 0}, f.pages()); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_RetryPage(t *testing.T) {
	m, f, _ := newTestModel(t, 100)

	m.GetItem(20)
	if m.RetryPage(2) {
		t.Error("RetryPage() = true while the page is in flight")
	}

	m.Coordinator().DataUnavailable(f.find(t, 2))
	m.GetItem(20)
	if diff := cmp.Diff([]int{2}, f.pages()); diff != "" {
		t.Fatalf("failed page refetched automatically: %v", f.pages())
	}

	if !m.RetryPage(2) {
		t.Fatal("RetryPage() = false for a failed page")
	}
	if diff := cmp.Diff([]int{2, 2}, f.pages()); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_NotifyVisibleArea(t *testing.T) {
	m, f, _ := newTestModel(t, 1)

	for _, pos := range []int{20, 100, 200, 500} {
		m.GetItem(pos)
	}
	m.NotifyVisibleArea(100, 110)

	c := m.Coordinator()
	for page, want := range map[int]bool{2: true, 10: true, 20: false, 50: false} {
		if got := c.AlreadyFetching(page); got != want {
			t.Errorf("AlreadyFetching(%d) = %v, want %v", page, got, want)
		}
	}
	if diff := cmp.Diff([]int{2}, f.pages()); diff != "" {
		t.Errorf("dispatched pages mismatch (-want +got):\n%s", diff)
	}
}

func TestModel_WithSource(t *testing.T) {
	var mu sync.Mutex
	var queries []primary.Query

	source := primary.DataSourceFunc[string](func(_ context.Context, req primary.Request) (*primary.Response[string], error) {
		mu.Lock()
		queries = append(queries, req.Query)
		mu.Unlock()
		return primary.NewResponseWithTotal(items(req.From, req.To), 95), nil
	})

	logger := zerolog.Nop()
	completed := make(chan primary.Query, 1)
	m, err := New[string](source, ConsumerFuncs{
		QuerySearchCompleteFunc: func(q primary.Query) { completed <- q },
	}, Config[string]{PageSize: 10, Placeholder: "…", Logger: &logger})
	require.NoError(t, err)
	defer m.Close()

	m.SetQuery("books")

	select {
	case q := <-completed:
		require.Equal(t, primary.Query("books"), q)
	case <-time.After(2 * time.Second):
		t.Fatal("search did not complete")
	}
	require.Equal(t, 95, m.Size())
	require.Equal(t, "p.3", m.GetItem(3))

	require.Equal(t, "…", m.GetItem(42))
	require.Eventually(t, func() bool { return m.GetItem(42) == "p.42" }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, q := range queries {
		require.Equal(t, primary.Query("books"), q)
	}
}

func TestModel_SetSource(t *testing.T) {
	logger := zerolog.Nop()
	m, err := New[string](nil, nil, Config[string]{Logger: &logger})
	require.NoError(t, err)
	defer m.Close()

	m.SetQuery("q")

	calls := make(chan primary.Request, 4)
	m.SetSource(primary.DataSourceFunc[string](func(_ context.Context, req primary.Request) (*primary.Response[string], error) {
		calls <- req
		return primary.NewResponse(items(req.From, req.To)), nil
	}))

	select {
	case req := <-calls:
		require.Equal(t, 0, req.Page)
		require.Equal(t, primary.Query("q"), req.Query)
	case <-time.After(2 * time.Second):
		t.Fatal("SetSource did not request page 0")
	}
	require.Eventually(t, func() bool { return m.GetItem(0) == "p.0" }, 2*time.Second, 5*time.Millisecond)
}
