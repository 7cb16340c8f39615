package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/c360studio/nomadplan/config"
	"github.com/c360studio/nomadplan/gateway"
	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/llm"
	"github.com/c360studio/nomadplan/metrics"
	"github.com/c360studio/nomadplan/model"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trip planning HTTP services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), a.cfg, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	client := llm.NewClient(registry,
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
		llm.WithRetryConfig(cfg.RetryConfig()),
		llm.WithLogger(logger),
		llm.WithObserver(m),
	)

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithHealthReporter(registry),
		gateway.WithMetrics(m, promRegistry),
		gateway.WithRequestTimeout(cfg.Server.RequestTimeout),
		gateway.WithCORSOrigins(cfg.Server.CORSOrigins...),
		gateway.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}
	if !cfg.Geocode.Disabled {
		opts = append(opts, gateway.WithGeocoder(newGeocoder(cfg, logger)))
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           gateway.New(client, opts...).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("nomadplan serving",
			"version", Version,
			"addr", cfg.Server.Addr,
			"capabilities", registry.ListCapabilities())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-signalCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("nomadplan stopped")
	return nil
}

// buildRegistry returns the default model registry with the configured
// registry file merged over it.
func buildRegistry(cfg *config.Config) (*model.Registry, error) {
	registry := model.NewDefaultRegistry()
	if cfg.LLM.RegistryFile != "" {
		fromFile, err := model.LoadFromFile(cfg.LLM.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("load model registry: %w", err)
		}
		registry.MergeFromConfig(fromFile.ToConfig())
	}
	registry.SetHealthConfig(cfg.HealthConfig())
	return registry, nil
}

func newGeocoder(cfg *config.Config, logger *slog.Logger) *geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithCountryCodes(cfg.Geocode.CountryCodes...),
		geocode.WithRateLimit(cfg.Geocode.RateLimit, 1),
		geocode.WithCacheTTL(cfg.Geocode.CacheTTL),
		geocode.WithLogger(logger),
	)
}
