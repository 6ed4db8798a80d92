package pageserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

func newTestServer(cfg Config) *Server {
	logger := zerolog.Nop()
	cfg.Logger = &logger
	return New(cfg)
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, Page) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var page Page
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rec, page
}

func TestServer_Page(t *testing.T) {
	s := newTestServer(Config{MaxTotal: 100})

	rec, page := get(t, s, "/search?from=20&to=30&total=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(page.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(page.Items))
	}
	if page.Items[0].Index != 20 || page.Items[0].Title != "Item 20" {
		t.Errorf("first item = %+v", page.Items[0])
	}
	if page.Total == nil || *page.Total != 100 {
		t.Errorf("total = %v, want 100", page.Total)
	}
	if rec.Header().Get(HeaderErrorLimitRemain) != "100" {
		t.Errorf("remain header = %q", rec.Header().Get(HeaderErrorLimitRemain))
	}
}

func TestServer_ShortLastPage(t *testing.T) {
	s := newTestServer(Config{MaxTotal: 95})

	_, page := get(t, s, "/search?from=90&to=100")
	if len(page.Items) != 5 {
		t.Errorf("items = %d, want 5", len(page.Items))
	}
	if page.Total != nil {
		t.Error("total sent without being asked for")
	}

	_, page = get(t, s, "/search?from=200&to=210")
	if len(page.Items) != 0 {
		t.Errorf("items past the end = %d, want 0", len(page.Items))
	}
}

func TestServer_QueryDeterminesTotal(t *testing.T) {
	s := newTestServer(Config{MaxTotal: 1000})

	a, b := s.Total("books"), s.Total("books")
	if a != b {
		t.Errorf("Total() not deterministic: %d vs %d", a, b)
	}
	if a < 1 || a > 1000 {
		t.Errorf("Total(books) = %d out of range", a)
	}

	_, page := get(t, s, "/search?q=books&from=0&to=1")
	if len(page.Items) != 1 || page.Items[0].Title != "books #0" {
		t.Errorf("items = %+v", page.Items)
	}
}

func TestServer_BadRequests(t *testing.T) {
	s := newTestServer(Config{MaxPageSize: 50, ErrorBudget: 10})

	tests := []struct {
		name   string
		target string
	}{
		{"missing from", "/search?to=10"},
		{"negative from", "/search?from=-1&to=10"},
		{"to before from", "/search?from=10&to=5"},
		{"range too large", "/search?from=0&to=51"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := get(t, s, tt.target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			want := 10 - (i + 1)
			if got := rec.Header().Get(HeaderErrorLimitRemain); got != strconv.Itoa(want) {
				t.Errorf("remain = %s, want %d", got, want)
			}
		})
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?from=0&to=1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}
