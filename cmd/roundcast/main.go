package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roundcast/roundcast/internal/api"
	"github.com/roundcast/roundcast/internal/cache"
	"github.com/roundcast/roundcast/internal/config"
	"github.com/roundcast/roundcast/internal/engine"
	"github.com/roundcast/roundcast/internal/history"
	"github.com/roundcast/roundcast/internal/ingest"
	"github.com/roundcast/roundcast/internal/metrics"
	"github.com/roundcast/roundcast/internal/repo"
	"github.com/roundcast/roundcast/internal/services"
	"github.com/roundcast/roundcast/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting roundcast",
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("grpc_address", cfg.Server.GRPCAddress),
		slog.String("strategy", cfg.Prediction.Strategy),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	cacheProvider := newCacheProvider(cfg.Cache, logger)
	defer cacheProvider.Close()

	thresholds, err := engine.LoadThresholds(cfg.Prediction.ThresholdsPath)
	if err != nil {
		logger.Error("failed to load thresholds", slog.String("path", cfg.Prediction.ThresholdsPath), slog.Any("error", err))
		os.Exit(1)
	}
	var opts []engine.Option
	if cfg.Prediction.Seed != 0 {
		opts = append(opts, engine.WithSource(engine.NewSeededSource(cfg.Prediction.Seed)))
	}
	registry, err := engine.NewDefaultRegistry(cfg.Prediction.Strategy, thresholds, opts...)
	if err != nil {
		logger.Error("failed to build strategies", slog.Any("error", err))
		os.Exit(1)
	}

	roundsClient := repo.NewRoundsClient(
		logger,
		cfg.Clients.Upstream.BaseURL,
		cfg.Clients.Upstream.LatestPath,
		cfg.Clients.Upstream.Timeout,
		cacheProvider,
		cfg.Cache.LatestTTL,
	)
	store := history.New(cfg.History.Capacity)
	coordinator := services.NewCoordinator(logger, roundsClient, store, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grpcServer *api.Server
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewServer(cfg.Server, api.NewPredictorService(coordinator))
		if err != nil {
			logger.Error("failed to create gRPC server", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
			if serveErr := grpcServer.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.Server.HTTPAddress != "" {
		httpServer = api.NewHTTPServer(cfg.Server, logger, coordinator)
		go func() {
			if serveErr := httpServer.Start(); serveErr != nil {
				logger.Error("http server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
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

	var poller *ingest.Poller
	if cfg.Ingest.Enabled {
		poller, err = ingest.NewPoller(logger, coordinator, cacheProvider, cfg.Ingest.Schedule, cfg.Ingest.LockTTL)
		if err != nil {
			logger.Error("failed to create ingest poller", slog.Any("error", err))
			os.Exit(1)
		}
		poller.Start()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if poller != nil {
		poller.Stop(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("roundcast stopped")
}

// newCacheProvider falls back to NoopProvider when caching is disabled or
// the valkey server is unreachable.
func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Backend == config.CacheBackendMemory {
		return cache.NewMemoryProvider()
	}
	provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}
