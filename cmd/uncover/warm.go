package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/uncover/internal/pageserver"
	"github.com/Sternrassler/uncover/pkg/pagecache"
	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/spf13/cobra"
)

type warmOptions struct {
	query       string
	pages       int
	concurrency int
	sourceURL   string
	redisURL    string
}

func newWarmCmd(root *rootOptions) *cobra.Command {
	opts := &warmOptions{}

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefill the Redis page cache with the first pages of a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("source-url") {
				cfg.SourceURL = opts.sourceURL
			}
			if cmd.Flags().Changed("redis-url") {
				cfg.RedisURL = opts.redisURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.RedisURL == "" || cfg.CacheTTL.Duration <= 0 {
				return fmt.Errorf("warm needs a redis url and a positive cache_ttl")
			}
			return runWarm(cmd.Context(), cmd.OutOrStdout(), cfg, *opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Search query")
	cmd.Flags().IntVar(&opts.pages, "pages", 0, "Maximum pages to warm (default 20)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Parallel fetches (default 4)")
	cmd.Flags().StringVar(&opts.sourceURL, "source-url", "", "Search endpoint URL")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "Redis URL")

	return cmd
}

func runWarm(ctx context.Context, out io.Writer, cfg Config, opts warmOptions) error {
	src, _, cleanup, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := pagecache.Warm[pageserver.Item](ctx, src, primary.Query(opts.query), pagecache.WarmConfig{
		PageSize:       cfg.PageSize,
		MaxPages:       opts.pages,
		MaxConcurrency: opts.concurrency,
	})
	fmt.Fprintf(out, "warmed %d pages of %q (total %d, failed %v)\n", result.Pages, opts.query, result.Total, result.Failed)
	return err
}
