package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	"ladder_maker/internal/ladder"
	"ladder_maker/internal/logging"
	"ladder_maker/internal/metrics"
	"ladder_maker/internal/mock"
	"ladder_maker/internal/runtime"
	"ladder_maker/internal/store"
	"ladder_maker/pkg/concurrency"
	"ladder_maker/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/ladder_runner.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ladder_runner version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetGlobalLogger(logger)

	logger.Info("Starting ladder_runner",
		"version", version,
		"strategies", len(cfg.Strategies),
		"venue", cfg.Execution.Venue,
	)

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("ladder_runner exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("ladder_runner stopped")
}

func run(cfg *config.Config, logger core.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(shutdownCtx)
		}()
	}

	var storeBackend interface {
		ForStrategy(string) core.IStateStore
	}
	if cfg.System.StatePath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.System.StatePath)
		if err != nil {
			return fmt.Errorf("state store: %w", err)
		}
		defer func() { _ = sqlStore.Close() }()
		storeBackend = sqlStore
		logger.Info("state persistence enabled", "path", cfg.System.StatePath)
	} else {
		storeBackend = store.NewMemoryStore()
		logger.Warn("no state path configured, snapshots stay in memory")
	}

	dispatchCfg := runtime.DispatcherConfig{
		RateLimit:        cfg.Execution.RateLimit,
		RetryAttempts:    cfg.Execution.RetryAttempts,
		RetryDelay:       time.Duration(cfg.Execution.RetryDelayMs) * time.Millisecond,
		BreakerOpenDelay: time.Duration(cfg.Execution.BreakerOpenSec) * time.Second,
	}

	instances := make([]*runtime.Instance, 0, len(cfg.Strategies))
	venues := make([]*mock.PaperVenue, 0, len(cfg.Strategies))
	for i := range cfg.Strategies {
		engine, err := ladder.NewEngine(cfg.LadderConfig(i), logger)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", cfg.Strategies[i].ID, err)
		}

		// Each instance gets its own paper venue so simulated flows
		// never cross strategies.
		venue := mock.NewPaperVenue()
		venues = append(venues, venue)

		instances = append(instances, &runtime.Instance{
			Engine:     engine,
			Venue:      venue,
			Source:     venue,
			Dispatcher: runtime.NewVenueDispatcher(venue, dispatchCfg, logger),
			Store:      storeBackend.ForStrategy(cfg.Strategies[i].ID),
		})
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "dispatch",
		MaxWorkers:  cfg.Execution.PoolSize,
		MaxCapacity: cfg.Execution.PoolBuffer,
	}, logger)
	defer pool.StopAndWait()

	if cfg.System.CancelOnExit {
		defer cancelAllOrders(venues, logger)
	}

	runner := runtime.NewRunner(pool, logger, time.Duration(cfg.System.SaveIntervalSecs)*time.Second)
	return runner.Run(ctx, instances)
}

// cancelAllOrders withdraws every resting order on shutdown.
func cancelAllOrders(venues []*mock.PaperVenue, logger core.ILogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, venue := range venues {
		open, err := venue.GetOpenOrders(ctx)
		if err != nil {
			logger.Warn("failed to list open orders on exit", "error", err)
			continue
		}
		for _, o := range open {
			if err := venue.CancelOrder(ctx, o.ClientOrderID); err != nil {
				logger.Warn("failed to cancel order on exit", "client_order_id", o.ClientOrderID, "error", err)
			}
		}
	}
}
