// Package testutil provides testing utilities for the HTTP page sources.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Sternrassler/uncover/internal/pageserver"
	"github.com/rs/zerolog"
)

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPageServer is a page server with request tracking and failure
// injection. Without queued responses it answers like pageserver.
type MockPageServer struct {
	server *httptest.Server
	pages  *pageserver.Server

	mu       sync.RWMutex
	queued   []MockResponse
	requests []*http.Request

	// RequestCount is the number of requests received.
	RequestCount int
}

// NewMockPageServer starts a mock server backed by a synthetic page server
// with maxTotal results per query.
func NewMockPageServer(maxTotal int) *MockPageServer {
	logger := zerolog.Nop()
	mock := &MockPageServer{
		pages: pageserver.New(pageserver.Config{MaxTotal: maxTotal, Logger: &logger}),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.requests = append(mock.requests, r.Clone(r.Context()))
		var canned *MockResponse
		if len(mock.queued) > 0 {
			canned = &mock.queued[0]
			mock.queued = mock.queued[1:]
		}
		mock.mu.Unlock()

		if canned != nil {
			writeCanned(w, *canned)
			return
		}
		mock.pages.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the search endpoint URL.
func (m *MockPageServer) URL() string {
	return m.server.URL + "/search"
}

// Close shuts down the mock server.
func (m *MockPageServer) Close() {
	m.server.Close()
}

// Pages returns the backing page server.
func (m *MockPageServer) Pages() *pageserver.Server {
	return m.pages
}

// Enqueue makes the next requests receive resp, in order.
func (m *MockPageServer) Enqueue(resp ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, resp...)
}

// Reset clears tracking and queued responses.
func (m *MockPageServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.requests = nil
	m.queued = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPageServer) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// LastRequest returns the most recent request, nil if none.
func (m *MockPageServer) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			pageserver.HeaderErrorLimitRemain: "95",
			pageserver.HeaderErrorLimitReset:  "60",
			"Content-Type":                    "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with a
// nearly exhausted error budget.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			pageserver.HeaderErrorLimitRemain: "3",
			pageserver.HeaderErrorLimitReset:  "30",
			"Content-Type":                    "application/json; charset=utf-8",
		},
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "bad request"}`,
		Headers: map[string]string{
			pageserver.HeaderErrorLimitRemain: "99",
			pageserver.HeaderErrorLimitReset:  "60",
			"Content-Type":                    "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"items": [`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
