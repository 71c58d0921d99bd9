package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mathias-bellec/MkulimaLink-sub002/internal/connectivity"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/syncengine"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/syncqueue"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/config"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/metrics"
)

// The agent runs on the device next to the app: it owns the local sqlite
// queue, probes the API for connectivity, and drains the queue whenever the
// device comes back online.
func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-agent"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sync-agent"

	logg = logger.New(logger.Options{
		ServiceName: "sync-agent",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	queueCfg := config.DBConfig{Driver: "sqlite", DSN: cfg.Sync.QueuePath}
	queueDB, err := db.New(context.Background(), queueCfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open local queue database", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueDB.Close(); err != nil {
			logg.Error(context.Background(), "error closing queue database", err)
		}
	}()

	if err := queueDB.DB().AutoMigrate(&models.QueuedAction{}); err != nil {
		logg.Error(context.Background(), "failed to migrate local queue schema", err)
		os.Exit(1)
	}

	store, err := syncqueue.NewStore(queueDB.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create queue store", err)
		os.Exit(1)
	}

	monitor, err := connectivity.NewMonitor(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create connectivity monitor", err)
		os.Exit(1)
	}

	remote, err := syncengine.NewRemoteClient(cfg.Sync.APIBaseURL, cfg.Sync.APIToken, cfg.Sync.RequestTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create remote client", err)
		os.Exit(1)
	}

	engine, err := syncengine.NewEngine(syncengine.EngineParams{
		Logger:  logg,
		Store:   store,
		Monitor: monitor,
		Metrics: metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync engine", err)
		os.Exit(1)
	}
	engine.RegisterRemote(remote)

	monitor.OnBecameOnline(func(ctx context.Context) {
		if _, err := engine.Sync(ctx, "connectivity"); err != nil {
			logg.Error(ctx, "sync pass failed", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// SIGUSR1 forces a drain without waiting for a connectivity transition.
	manual := make(chan os.Signal, 1)
	signal.Notify(manual, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-manual:
				if _, err := engine.Sync(ctx, "manual"); err != nil {
					logg.Error(ctx, "manual sync failed", err)
				}
			}
		}
	}()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"queue": cfg.Sync.QueuePath,
		"api":   cfg.Sync.APIBaseURL,
	})
	if pending, err := store.Count(ctx); err == nil {
		ctx = logg.WithField(ctx, "pending", pending)
	}
	logg.Info(ctx, "starting sync agent")

	probe := connectivity.HTTPProbe(
		&http.Client{Timeout: cfg.Sync.RequestTimeout},
		cfg.Sync.APIBaseURL+"/health/ready",
	)
	if err := monitor.Run(ctx, probe, cfg.Sync.ProbeInterval); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync agent stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync agent shutting down gracefully")
}
