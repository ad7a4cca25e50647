package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/handlers"
	"github.com/lehigh-university-libraries/ellie/internal/metrics"
	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the postcard lookup API",
		Long: `Loads the catalog and pointing model once and serves lookups over HTTP.

  POST /api/lookups        {"ra": .., "dec": ..} or {"id": .., "survey": ..}
                           add "cutout": true to also write a product
  GET  /api/lookups        every stored lookup
  GET  /api/lookups/{id}   one lookup
  GET  /products/{name}    product FITS written by a cutout lookup
  GET  /metrics            Prometheus metrics
  GET  /healthcheck`,
		Example: `  # Start server on default port 8888
  ellie serve

  # Start server on custom port
  ellie serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.FromConfig(a.cfg)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			lookupMetrics, err := metrics.NewLookupMetrics(registry)
			if err != nil {
				return err
			}

			handler := handlers.New(p, lookupMetrics, a.cfg.OutputDir)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/lookups", handler.HandleLookups)
			mux.HandleFunc("/api/lookups/", handler.HandleLookupDetail)
			mux.HandleFunc("/products/", handler.HandleProducts)
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Lookup API available", "addr", addr, "url", "http://localhost"+addr, "postcards", len(p.Matcher().Records()))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
