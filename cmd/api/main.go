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
	"go.uber.org/multierr"

	"github.com/angelmondragon/lanecalc/api/routes"
	"github.com/angelmondragon/lanecalc/internal/catalog"
	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/internal/gateway"
	"github.com/angelmondragon/lanecalc/internal/pricing"
	"github.com/angelmondragon/lanecalc/internal/register"
	"github.com/angelmondragon/lanecalc/internal/transactions"
	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db"
	"github.com/angelmondragon/lanecalc/pkg/idempotency"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/metrics"
	"github.com/angelmondragon/lanecalc/pkg/migrate"
	"github.com/angelmondragon/lanecalc/pkg/outbox"
	"github.com/angelmondragon/lanecalc/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithLaneID(ctx, cfg.App.LaneID)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "failed to bootstrap database", err)

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "failed to run dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "failed to bootstrap redis", err)

	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	products := catalog.NewCached(catalog.NewRepository(dbClient.DB()), redisClient, cfg.Engine.CatalogCacheTTL, logg)

	approvals, err := gateway.NewApprovalClient(cfg.Gateway.ApprovalURL, gateway.WithTimeout(cfg.Gateway.Timeout))
	requireResource(ctx, logg, "failed to create approval client", err)

	terminal, err := gateway.NewTerminalClient(cfg.Gateway.TerminalURL, gateway.WithTimeout(cfg.Gateway.Timeout))
	requireResource(ctx, logg, "failed to create terminal client", err)

	calc, err := engine.NewService(products, approvals, terminal, engine.Options{
		ServiceFee:               cfg.Engine.ServiceFee,
		RefundPolicy:             cfg.Engine.RefundPolicy,
		ApprovalPercentThreshold: cfg.Engine.ApprovalPercentThreshold,
		VoidRequiresApproval:     cfg.Engine.VoidRequiresApproval,
		Limits: pricing.Limits{
			MaxUnit:    cfg.Engine.MaxUnitQuantity,
			MaxWeighed: cfg.Engine.MaxWeighedQuantity,
		},
	})
	requireResource(ctx, logg, "failed to create engine", err)

	store, err := transactions.NewStore(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg), logg)
	requireResource(ctx, logg, "failed to create transaction store", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions, err := register.NewManager(register.Deps{
		Engine:  calc,
		Holds:   register.NewRedisHoldStore(redisClient, cfg.Engine.HoldTTL),
		Sink:    store,
		Metrics: metrics.NewOperationMetrics(reg),
		Logger:  logg,
	})
	requireResource(ctx, logg, "failed to create register", err)

	// The configured lane is opened eagerly so a bad lane id fails the boot.
	_, err = sessions.Session(cfg.App.LaneID)
	requireResource(ctx, logg, "failed to open lane session", err)

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "failed to create idempotency manager", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, sessions, store, guard, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
