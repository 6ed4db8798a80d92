package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/uncover/internal/pageserver"
	"github.com/Sternrassler/uncover/pkg/logging"
	"github.com/Sternrassler/uncover/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr     string
		maxTotal int
		latency  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the synthetic search endpoint with /health and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("max-total") {
				cfg.MaxTotal = maxTotal
			}
			if cmd.Flags().Changed("latency") {
				cfg.Latency = Duration{latency}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			listener, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
			}
			return serve(cmd.Context(), listener, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().IntVar(&maxTotal, "max-total", 0, "Maximum number of results per query")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Artificial latency per page")

	return cmd
}

func newMux(cfg Config) *http.ServeMux {
	logger := logging.NewLogger("pageserver")
	pages := pageserver.New(pageserver.Config{
		MaxTotal: cfg.MaxTotal,
		Latency:  cfg.Latency.Duration,
		Logger:   &logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/search", pages)
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// serve runs the HTTP server on listener until ctx ends, then shuts down
// gracefully.
func serve(ctx context.Context, listener net.Listener, cfg Config) error {
	logger := logging.NewLogger("serve")

	server := &http.Server{
		Handler:           newMux(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", listener.Addr().String()).Msg("Starting page server")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("Shutting down page server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
