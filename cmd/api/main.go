package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mathias-bellec/MkulimaLink-sub002/api/routes"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/orders"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/prices"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/products"
	paymentwebhook "github.com/mathias-bellec/MkulimaLink-sub002/internal/webhooks/payment"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/config"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/metrics"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/migrate"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/mobilemoney"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	syncMetrics := metrics.NewSyncMetrics(registry)

	gateway, err := mobilemoney.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	productService, err := products.NewService(logg, products.NewRepository(dbClient.DB()), redisClient, cfg.Cache.ProductTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	priceService, err := prices.NewService(logg, prices.NewRepository(dbClient.DB()), redisClient, cfg.Cache.PriceTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create price service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(logg, orders.NewRepository(dbClient.DB()), gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	callbackGuard, err := paymentwebhook.NewDedupeGuard(redisClient, cfg.Cache.CallbackDedupeTTL, paymentwebhook.DedupeScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create callback dedupe guard", err)
		os.Exit(1)
	}

	callbackService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Logger:  logg,
		Orders:  orderService,
		Guard:   callbackGuard,
		Secret:  []byte(cfg.Gateway.Secret),
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create callback service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Products: productService,
			Prices:   priceService,
			Orders:   orderService,
			Callback: callbackService,
			Registry: registry,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
