package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/metrics"
	"github.com/angelmondragon/lanecalc/pkg/migrate"
	"github.com/angelmondragon/lanecalc/pkg/outbox"
	"github.com/angelmondragon/lanecalc/pkg/outbox/registry"
	"github.com/angelmondragon/lanecalc/pkg/pubsub"
)

const serviceName = "sync-publisher"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(logg.WithLaneID(ctx, cfg.App.LaneID), map[string]any{
		"env":   cfg.App.Env,
		"topic": cfg.PubSub.SyncTopic,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	mustStart(ctx, logg, "failed to bootstrap database", err)
	mustStart(ctx, logg, "failed to run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	mustStart(ctx, logg, "failed to bootstrap pubsub", err)
	defer func() {
		if err := multierr.Combine(pubsubClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	routes, err := registry.NewEventRegistry(cfg.PubSub)
	mustStart(ctx, logg, "failed to build event registry", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   routes,
		Metrics:    metrics.NewPublisherMetrics(reg),
	})
	mustStart(ctx, logg, "failed to create sync publisher", err)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	logg.Info(ctx, "starting sync publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "sync publisher shut down")
}

func mustStart(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
