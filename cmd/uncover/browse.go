package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/uncover/internal/pageserver"
	"github.com/Sternrassler/uncover/pkg/fetch"
	"github.com/Sternrassler/uncover/pkg/httpsource"
	"github.com/Sternrassler/uncover/pkg/logging"
	"github.com/Sternrassler/uncover/pkg/model"
	"github.com/Sternrassler/uncover/pkg/pagecache"
	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/Sternrassler/uncover/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type browseOptions struct {
	query       string
	pages       int
	pageTimeout time.Duration
	stateFile   string
	sourceURL   string
	lanes       int
}

func newBrowseCmd(root *rootOptions) *cobra.Command {
	opts := &browseOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Scroll through the results of a query page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("source-url") {
				cfg.SourceURL = opts.sourceURL
			}
			if cmd.Flags().Changed("lanes") {
				cfg.Lanes = opts.lanes
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBrowse(cmd.Context(), cmd.OutOrStdout(), cfg, *opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Search query")
	cmd.Flags().IntVar(&opts.pages, "pages", 3, "Number of pages to scroll through")
	cmd.Flags().DurationVar(&opts.pageTimeout, "page-timeout", 10*time.Second, "How long to wait for one page")
	cmd.Flags().StringVar(&opts.stateFile, "state", "", "File to restore the model from and save it to")
	cmd.Flags().StringVar(&opts.sourceURL, "source-url", "", "Search endpoint URL")
	cmd.Flags().IntVar(&opts.lanes, "lanes", 0, "Concurrent page requests")

	return cmd
}

// buildSource assembles the source stack: HTTP, error budget, then the
// optional Redis page cache on top. The returned func releases it.
func buildSource(cfg Config) (primary.DataSource[pageserver.Item], *ratelimit.Tracker, func(), error) {
	limiterLogger := logging.NewLogger("ratelimit")
	tracker, err := ratelimit.NewTracker(ratelimit.Config{
		Rate:          rate.Limit(cfg.Rate),
		Burst:         cfg.Burst,
		ThrottleDelay: time.Second,
		Logger:        &limiterLogger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create tracker: %w", err)
	}

	httpCfg := httpsource.DefaultConfig(cfg.SourceURL)
	httpCfg.MaxRetries = cfg.MaxRetries
	httpCfg.Observer = tracker
	httpSrc, err := httpsource.New[pageserver.Item](httpCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create http source: %w", err)
	}

	var src primary.DataSource[pageserver.Item] = ratelimit.NewSource[pageserver.Item](httpSrc, tracker)
	cleanup := func() { httpSrc.Close() }

	if cfg.RedisURL != "" && cfg.CacheTTL.Duration > 0 {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			// Plain host:port, as REDIS_URL is often given.
			opt = &redis.Options{Addr: cfg.RedisURL}
		}
		redisClient := redis.NewClient(opt)
		src = pagecache.NewSource[pageserver.Item](src, pagecache.NewManager(redisClient), cfg.CacheTTL.Duration,
			pagecache.WithLogger(logging.NewLogger("pagecache")))
		cleanup = func() {
			httpSrc.Close()
			redisClient.Close()
		}
	}

	return src, tracker, cleanup, nil
}

func runBrowse(ctx context.Context, out io.Writer, cfg Config, opts browseOptions) error {
	logger := logging.NewLogger("browse")

	src, tracker, cleanup, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	changed := make(chan struct{}, 1)
	consumer := model.ConsumerFuncs{
		RangeChangedFunc: func(from, count int) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
		QuerySearchCompleteFunc: func(q primary.Query) {
			logger.Info().Str("query", q.String()).Msg("First results arrived")
		},
	}

	modelCfg := model.DefaultConfig[pageserver.Item]()
	modelCfg.PageSize = cfg.PageSize
	modelCfg.Fetch = fetch.Config{
		Lanes:            cfg.Lanes,
		DelayWhenPending: pendingDelay(cfg.DelayWhenPending.Duration),
	}
	m, err := model.New[pageserver.Item](src, consumer, modelCfg)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	defer m.Close()

	// Back off to a single lane while the source's error budget is low.
	tracker.Watch(func(level ratelimit.Level) {
		lanes := ratelimit.LanesFor(level, cfg.Lanes)
		logger.Info().Str("budget", level.String()).Int("lanes", lanes).Msg("Adjusting fetch lanes")
		m.Coordinator().SetLanes(lanes)
	})

	if opts.stateFile != "" {
		restoreState(m, opts.stateFile)
	}

	query := primary.Query(opts.query)
	if !m.HasQuery() || m.Query() != query {
		m.SetQuery(query)
	}

	if err := scroll(ctx, out, m, changed, opts.pages, opts.pageTimeout); err != nil {
		return err
	}

	if opts.stateFile != "" {
		blob, err := m.GetState()
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		if err := os.WriteFile(opts.stateFile, blob, 0o644); err != nil {
			return fmt.Errorf("write state: %w", err)
		}
	}
	return nil
}

// pendingDelay maps the configured delay onto fetch.Config, where zero
// means "default". A configured zero reuses busy lanes right away.
func pendingDelay(d time.Duration) time.Duration {
	if d == 0 {
		return fetch.NoPendingDelay
	}
	return d
}

func restoreState(m *model.Model[pageserver.Item], path string) {
	logger := logging.NewLogger("browse")

	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Cannot read state")
		return
	}
	if err := m.SetState(blob); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Discarding unreadable state")
		return
	}
	logger.Info().Str("path", path).Int("size", m.Size()).Msg("State restored")
}

// scroll shows pages one after another the way a list view would: it reports
// the visible window, reads every position in it and waits for the page.
func scroll(ctx context.Context, out io.Writer, m *model.Model[pageserver.Item], changed <-chan struct{}, pages int, pageTimeout time.Duration) error {
	pageSize := m.PageSize()

	for page := 0; page < pages; page++ {
		from := page * pageSize
		to := from + pageSize
		if !m.FirstQueryResult() && page > 0 && from >= m.Size() {
			fmt.Fprintf(out, "-- end of results (%d items)\n", m.Size())
			return nil
		}

		m.NotifyVisibleArea(from, to)
		for pos := from; pos < to; pos++ {
			m.GetItem(pos)
		}

		pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
		items, err := waitPage(pageCtx, m, changed, page)
		cancel()
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		fmt.Fprintf(out, "-- page %d (%d..%d of %d)\n", page, from, to, m.Size())
		for _, item := range items {
			fmt.Fprintf(out, "%6d  %s\n", item.Index, item.Title)
		}
	}
	return nil
}

// waitPage blocks until page is cached in m or ctx ends.
func waitPage(ctx context.Context, m *model.Model[pageserver.Item], changed <-chan struct{}, page int) ([]pageserver.Item, error) {
	for {
		for _, seg := range m.Segments() {
			if seg.Page() == page {
				return seg.Items(), nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}
