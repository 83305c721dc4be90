package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/unifyiq/unifyiq/internal/api"
	"github.com/unifyiq/unifyiq/internal/metrics"
	"github.com/unifyiq/unifyiq/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC insight service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger.Info("starting unifyiq", slog.String("address", cfg.Server.Address), slog.String("source", cfg.Sources.Kind))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", slog.Any("error", err))
		return err
	}
	defer app.Close()

	var server *api.Server
	handler := services.NewInsightHandler(logger, app.queries, func(serving bool) {
		if server != nil {
			server.SetServing(serving)
		}
	})
	server, err = api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		return err
	}

	reload := func(ctx context.Context) {
		if _, err := app.queries.Reload(ctx); err != nil {
			logger.Error("dataset reload failed", slog.Any("error", err))
		}
		server.SetServing(app.store.Snapshot() != nil)
	}
	// Queries fail with FailedPrecondition until the first load succeeds.
	reload(ctx)
	go reloadEvery(ctx, cfg.Sources.ReloadInterval, reload)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if app.store.Snapshot() == nil {
				http.Error(w, "dataset not loaded", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("unifyiq stopped", slog.Duration("p95", app.queries.LatencyP95()))
	return nil
}
