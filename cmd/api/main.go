package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmtri/stylehub-backend/api/routes"
	"github.com/dmtri/stylehub-backend/internal/checkout"
	"github.com/dmtri/stylehub-backend/internal/orders"
	"github.com/dmtri/stylehub-backend/internal/payment"
	"github.com/dmtri/stylehub-backend/internal/settings"
	"github.com/dmtri/stylehub-backend/pkg/config"
	"github.com/dmtri/stylehub-backend/pkg/db"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/metrics"
	"github.com/dmtri/stylehub-backend/pkg/migrate"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
	"github.com/dmtri/stylehub-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	settingsService, err := settings.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	correlator, err := payment.NewCorrelator(redisClient, cfg.Gateway.CorrelationTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create correlator", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	paymentAdapter, err := payment.NewAdapter(payment.AdapterParams{
		Config:     cfg.Gateway,
		Settings:   settingsService,
		Correlator: correlator,
		TxRunner:   dbClient,
		OrdersRepo: ordersRepo,
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment adapter", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	checkoutService, err := checkout.NewService(checkout.Params{
		Config:     cfg.Checkout,
		TxRunner:   dbClient,
		OrdersRepo: ordersRepo,
		Outbox:     outboxService,
		Linker:     paymentAdapter,
		Metrics:    checkoutMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			paymentAdapter,
			checkoutMetrics,
			registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
