package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/metrics"
	"github.com/Sternrassler/rally-wsapi-client/pkg/pagination"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// newServeCmd exposes paged queries over HTTP.
func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve paged queries over HTTP",
		Long: `Start an HTTP server that runs paged WSAPI queries on behalf of callers.

Endpoints:
  GET /health         liveness
  GET /ready          readiness (pings Redis when the cache is enabled)
  GET /metrics        Prometheus metrics
  GET /query/{type}   fetch every page; query parameters are passed through,
                      "limit" caps the number of results

The server runs until interrupted (Ctrl+C) or receives SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.authorize(ctx); err != nil {
				return err
			}
			return a.serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", a.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /query/{type}", a.queryHandler)
	return mux
}

func (a *app) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Starting WSAPI query server")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.logger.Info().Msg("Shutdown complete")
		return nil
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (a *app) readyHandler(w http.ResponseWriter, r *http.Request) {
	if a.redis != nil {
		if err := a.redis.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (a *app) queryHandler(w http.ResponseWriter, r *http.Request) {
	opts := pagination.Options{PageSize: a.cfg.PageSize, Limit: a.cfg.Limit}

	params := map[string]string{}
	for key, values := range r.URL.Query() {
		if key == "limit" {
			n, err := strconv.Atoi(values[0])
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid limit %q", values[0]), http.StatusBadRequest)
				return
			}
			opts.Limit = n
			continue
		}
		params[key] = values[0]
	}

	req := client.NewRequest(a.cfg.URL(r.PathValue("type")), params)
	doc, err := a.fetcher.FetchAll(r.Context(), req, opts)
	if err != nil {
		status := http.StatusBadGateway
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("WSAPI query failed: %v", err), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
