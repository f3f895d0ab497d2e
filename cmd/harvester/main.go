package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/catalog"
	"github.com/ethpandaops/quake-harvester/internal/config"
	"github.com/ethpandaops/quake-harvester/internal/harvester"
	"github.com/ethpandaops/quake-harvester/internal/leader"
	"github.com/ethpandaops/quake-harvester/internal/metrics"
	"github.com/ethpandaops/quake-harvester/internal/redis"
	"github.com/ethpandaops/quake-harvester/internal/server"
	"github.com/ethpandaops/quake-harvester/internal/sink"
	"github.com/ethpandaops/quake-harvester/internal/version"
	"github.com/ethpandaops/quake-harvester/internal/window"
)

// infrastructure holds core infrastructure components.
type infrastructure struct {
	redisClient redis.Client // nil unless a component needs it
	elector     leader.Elector
}

// services holds application services.
type services struct {
	sink   sink.Sink
	runner *harvester.Runner
	handle *harvester.Handle
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup logger
	logger := setupLogger()

	// Create application context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load and validate configuration
	cfg, err := loadAndValidateConfig(logger, *configPath)
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	// Setup infrastructure (redis, leader election)
	infra, err := setupInfrastructure(ctx, logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Infrastructure setup failed")
	}

	// Setup services (catalog, sink, harvester)
	svc, err := setupServices(ctx, logger, cfg, infra)
	if err != nil {
		logger.WithError(err).Fatal("Service setup failed")
	}

	// Start HTTP server
	srv := startServer(cfg, logger, infra, svc)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	// Stop the harvest loop before cancelling so the in-flight cycle can
	// finish its delivery.
	shutdownGracefully(logger, cfg, srv, svc, infra)

	cancel()
}

// setupLogger creates and configures the application logger.
func setupLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	logger.WithFields(logrus.Fields{
		"version":    version.Short(),
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	}).Info("Starting...")

	return logger
}

// loadAndValidateConfig loads the configuration file and validates it.
func loadAndValidateConfig(logger *logrus.Logger, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Set log level from config
	level, parseErr := logrus.ParseLevel(cfg.Server.LogLevel)
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Invalid log level, using info")

		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"port":       cfg.Server.Port,
		"log_level":  cfg.Server.LogLevel,
		"mode":       cfg.Harvester.Mode,
		"start_time": cfg.Harvester.StartTime,
		"sink":       cfg.Sink.Type,
		"leader":     cfg.Leader.Enabled,
	}).Info("Configuration loaded")

	return cfg, nil
}

// setupInfrastructure initializes Redis and leader election. Redis is only
// dialled when leader election or the redis sink needs it.
func setupInfrastructure(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.NeedsRedis() {
		infra.redisClient = redis.NewClient(logger, redis.Config{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
		})

		if err := infra.redisClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start Redis client: %w", err)
		}
	}

	if cfg.Leader.Enabled {
		infra.elector = leader.NewElector(logger, leader.Config{
			LockKey:       cfg.Leader.LockKey,
			LockTTL:       cfg.Leader.LockTTL,
			RenewInterval: cfg.Leader.RenewInterval,
			RetryInterval: cfg.Leader.RetryInterval,
		}, infra.redisClient)
	} else {
		infra.elector = leader.NewStandalone(logger)
	}

	if err := infra.elector.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start leader election: %w", err)
	}

	return infra, nil
}

// setupServices wires the catalog client, window resolver, sink and harvest
// loop, then starts harvesting from the configured start time.
func setupServices(
	ctx context.Context,
	logger *logrus.Logger,
	cfg *config.Config,
	infra *infrastructure,
) (*services, error) {
	svc := &services{}

	catalogSvc, err := catalog.New(&cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog service: %w", err)
	}

	resolver, err := window.NewResolver(logger, cfg.Harvester.WindowConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create window resolver: %w", err)
	}

	svc.sink, err = sink.New(logger, cfg.Sink, infra.redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}

	if err := svc.sink.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start sink: %w", err)
	}

	logger.WithField("type", cfg.Sink.Type).Info("Sink started")

	observer := metrics.NewHarvesterObserver(prometheus.DefaultRegisterer)
	fetcher := harvester.NewFetcher(logger, resolver, catalogSvc, catalogSvc, svc.sink, observer)

	svc.runner = harvester.NewRunner(logger, cfg.Harvester, fetcher, infra.elector)

	svc.handle, err = svc.runner.Start(ctx, cfg.Harvester.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to start harvester: %w", err)
	}

	return svc, nil
}

// startServer creates and starts the HTTP server.
func startServer(
	cfg *config.Config,
	logger *logrus.Logger,
	infra *infrastructure,
	svc *services,
) *server.Server {
	srv := server.New(logger, cfg, svc.runner, infra.elector.ID(), svc.runner.Running)

	// Start server in goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	return srv
}

// shutdownGracefully performs graceful shutdown of all services.
// Shutdown order:
// 1. HTTP server (stop accepting requests).
// 2. Harvester (finish the current cycle, deliver nothing after).
// 3. Sink (flush and close connections).
// 4. Leader election (release leadership lock).
// 5. Redis client (close connections).
func shutdownGracefully(
	logger *logrus.Logger,
	cfg *config.Config,
	srv *server.Server,
	svc *services,
	infra *infrastructure,
) {
	logger.Info("Initiating graceful shutdown...")

	// Create a timeout context for the shutdown process
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}

	// Stop harvesting
	if svc.handle != nil {
		svc.handle.Stop()
	}

	// Stop sink
	if err := svc.sink.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping sink")
	}

	// Stop leader election (releases lock)
	if err := infra.elector.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping leader election")
	}

	// Stop Redis client (closes connections)
	if infra.redisClient != nil {
		if err := infra.redisClient.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping Redis client")
		}
	}

	logger.Info("Harvester stopped gracefully")
}
