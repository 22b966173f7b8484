package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/furniture-production-backend/internal/cron"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/notifications"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/internal/tracking"
	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/db"
	"github.com/angelmondragon/furniture-production-backend/pkg/instance"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/metrics"
	"github.com/angelmondragon/furniture-production-backend/pkg/migrate"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), instance.GetID(), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	productionService, err := newProductionService(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create production service", err)
		os.Exit(1)
	}

	autoAdvanceJob, err := cron.NewProductionAutoAdvanceJob(cron.ProductionAutoAdvanceJobParams{
		Logger:    logg,
		Advancer:  productionService,
		BatchSize: cfg.Production.AutoAdvanceBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-advance job", err)
		os.Exit(1)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
		Every:      cfg.Cron.RetentionEvery,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	notificationRetentionJob, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetention,
		Every:      cfg.Cron.RetentionEvery,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification retention job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(autoAdvanceJob, outboxRetentionJob, notificationRetentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// lockKey scopes the cycle lock per environment so staging and production
// workers sharing a Redis never block each other.
func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey("cron-worker:" + env)
}

func newProductionService(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (production.Service, error) {
	productionMetrics := metrics.NewProductionMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()), outboxService, logg, productionMetrics)
	if err != nil {
		return nil, err
	}
	syncer, err := tracking.NewSyncer(tracking.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	return production.NewService(
		production.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		ledger,
		syncer,
		productionMetrics,
		logg,
		production.Options{
			TotalDurationMinutes: cfg.Production.TotalDurationMinutes,
			FallbackStepMinutes:  cfg.Production.FallbackStepMinutes,
		},
	)
}
