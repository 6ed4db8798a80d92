package pagecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/rs/zerolog/log"
)

// WarmConfig holds cache warming configuration.
type WarmConfig struct {
	// PageSize is the number of positions per page. It must match the page
	// size of the models reading the cache, or the keys won't line up.
	PageSize int

	// MaxPages caps the number of pages warmed, page 0 included.
	MaxPages int

	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultWarmConfig returns page size 10, 20 pages and 4 workers.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		PageSize:       10,
		MaxPages:       20,
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// WarmResult summarizes a warming run.
type WarmResult struct {
	// Total is the item count the source reported for the query, -1 if it
	// reported none.
	Total int

	// Pages is the number of pages fetched successfully.
	Pages int

	// Failed lists pages whose fetch failed.
	Failed []int
}

type warmPage struct {
	page int
	err  error
}

// Warm fetches the first pages of query through src in parallel so a
// caching src has them stored before anyone scrolls. Page 0 is fetched first
// with the total required; the number of further pages follows from the
// total, or MaxPages when the source reports none.
//
// Failed pages don't stop the run; they are returned in the result together
// with an error.
func Warm[T any](ctx context.Context, src primary.DataSource[T], query primary.Query, cfg WarmConfig) (WarmResult, error) {
	def := DefaultWarmConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	start := time.Now()
	result := WarmResult{Total: -1}

	first, err := fetchPage(ctx, src, query, 0, cfg, true)
	if err != nil {
		return result, fmt.Errorf("fetch first page: %w", err)
	}
	result.Pages = 1

	pages := cfg.MaxPages
	if first.HasTotal() {
		result.Total = *first.Total
		pages = min(pages, (result.Total+cfg.PageSize-1)/cfg.PageSize)
	} else if len(first.Items) < cfg.PageSize {
		pages = 1
	}

	log.Info().
		Str("query", query.String()).
		Int("pages", pages).
		Int("total", result.Total).
		Msg("Warming page cache")

	if pages <= 1 {
		return result, nil
	}

	pageQueue := make(chan int, pages)
	for page := 1; page < pages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	results := make(chan warmPage, pages)
	var wg sync.WaitGroup
	for i := 0; i < min(cfg.MaxConcurrency, pages-1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageQueue {
				if ctx.Err() != nil {
					results <- warmPage{page: page, err: ctx.Err()}
					continue
				}
				_, err := fetchPage(ctx, src, query, page, cfg, false)
				results <- warmPage{page: page, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Int("page", r.page).Msg("Page warm failed")
			result.Failed = append(result.Failed, r.page)
			lastErr = r.err
			continue
		}
		result.Pages++
	}

	log.Info().
		Str("query", query.String()).
		Int("pages", result.Pages).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Warm complete")

	if lastErr != nil {
		return result, fmt.Errorf("warm %q (partial: %d/%d pages): %w", query, result.Pages, pages, lastErr)
	}
	return result, nil
}

func fetchPage[T any](ctx context.Context, src primary.DataSource[T], query primary.Query, page int, cfg WarmConfig, total bool) (*primary.Response[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	from := page * cfg.PageSize
	req := primary.NewRequest(page, from, from+cfg.PageSize, query, total)
	resp, err := src.Fetch(pageCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, primary.ErrNoResponse
	}
	return resp, nil
}
