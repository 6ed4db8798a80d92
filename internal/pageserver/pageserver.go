// Package pageserver serves a synthetic, deterministic paged search result
// over HTTP. It backs the demo server and the HTTP source tests.
//
// Wire format:
//
//	GET /search?q=<query>&from=<n>&to=<n>&total=<bool>
//	200 {"items":[{"index":20,"title":"..."}],"total":937}
//
// Every response carries the error budget headers
// X-Uncover-Error-Limit-Remain and X-Uncover-Error-Limit-Reset. Each 4xx
// answer spends one error of the current window.
package pageserver

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Header names of the error budget.
const (
	HeaderErrorLimitRemain = "X-Uncover-Error-Limit-Remain"
	HeaderErrorLimitReset  = "X-Uncover-Error-Limit-Reset"
)

// Item is one search result.
type Item struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

// Page is the JSON body of a successful response.
type Page struct {
	Items []Item `json:"items"`
	Total *int   `json:"total,omitempty"`
}

// Config holds server configuration.
type Config struct {
	// MaxTotal bounds the number of results of a query. The actual count is
	// derived from the query so different queries have different sizes.
	MaxTotal int

	// MaxPageSize is the largest range served in one request.
	MaxPageSize int

	// Latency is added to every successful response.
	Latency time.Duration

	// ErrorBudget is the number of client errors tolerated per window.
	ErrorBudget int

	// BudgetWindow is the length of one error budget window.
	BudgetWindow time.Duration

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxTotal:     1000,
		MaxPageSize:  200,
		ErrorBudget:  100,
		BudgetWindow: time.Minute,
	}
}

// Server is the search handler.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	errors      int
	windowStart time.Time
}

// New creates a server. Zero config values take their defaults.
func New(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = def.MaxTotal
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = def.ErrorBudget
	}
	if cfg.BudgetWindow <= 0 {
		cfg.BudgetWindow = def.BudgetWindow
	}

	logger := log.With().Str("component", "pageserver").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Server{cfg: cfg, logger: logger, windowStart: time.Now()}
}

// Total returns the number of results for q.
func (s *Server) Total(q string) int {
	if q == "" {
		return s.cfg.MaxTotal
	}
	h := fnv.New32a()
	h.Write([]byte(q))
	return 1 + int(h.Sum32()%uint32(s.cfg.MaxTotal))
}

// Title returns the title of result index for q.
func Title(q string, index int) string {
	if q == "" {
		return fmt.Sprintf("Item %d", index)
	}
	return fmt.Sprintf("%s #%d", q, index)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := r.URL.Query()
	query := params.Get("q")

	from, err := strconv.Atoi(params.Get("from"))
	if err != nil || from < 0 {
		s.fail(w, http.StatusBadRequest, "from must be a non-negative integer")
		return
	}
	to, err := strconv.Atoi(params.Get("to"))
	if err != nil || to < from {
		s.fail(w, http.StatusBadRequest, "to must be an integer not below from")
		return
	}
	if to-from > s.cfg.MaxPageSize {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("range larger than %d", s.cfg.MaxPageSize))
		return
	}
	withTotal, _ := strconv.ParseBool(params.Get("total"))

	if s.cfg.Latency > 0 {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
	}

	total := s.Total(query)
	page := Page{Items: make([]Item, 0, to-from)}
	for i := from; i < to && i < total; i++ {
		page.Items = append(page.Items, Item{Index: i, Title: Title(query, i)})
	}
	if withTotal {
		page.Total = &total
	}

	s.logger.Debug().
		Str("query", query).
		Int("from", from).
		Int("to", to).
		Int("items", len(page.Items)).
		Msg("Serving page")

	s.writeBudget(w, false)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.writeBudget(w, true)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeBudget sets the budget headers, spending one error if spend is set.
func (s *Server) writeBudget(w http.ResponseWriter, spend bool) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.windowStart) >= s.cfg.BudgetWindow {
		s.windowStart = now
		s.errors = 0
	}
	if spend {
		s.errors++
	}
	remain := s.cfg.ErrorBudget - s.errors
	if remain < 0 {
		remain = 0
	}
	reset := s.cfg.BudgetWindow - now.Sub(s.windowStart)
	s.mu.Unlock()

	w.Header().Set(HeaderErrorLimitRemain, strconv.Itoa(remain))
	w.Header().Set(HeaderErrorLimitReset, strconv.Itoa(int(reset.Seconds()+0.5)))
}
