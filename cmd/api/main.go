package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/furniture-production-backend/api/controllers"
	"github.com/angelmondragon/furniture-production-backend/api/routes"
	"github.com/angelmondragon/furniture-production-backend/internal/batches"
	"github.com/angelmondragon/furniture-production-backend/internal/bom"
	"github.com/angelmondragon/furniture-production-backend/internal/consumption"
	"github.com/angelmondragon/furniture-production-backend/internal/forecast"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/notifications"
	"github.com/angelmondragon/furniture-production-backend/internal/orders"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/internal/tracking"
	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/db"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/metrics"
	"github.com/angelmondragon/furniture-production-backend/pkg/migrate"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/redis"
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
	productionMetrics := metrics.NewProductionMetrics(registry)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	ledger, err := inventory.NewLedger(inventoryRepo, outboxService, logg, productionMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	inventoryService, err := inventory.NewService(inventoryRepo, ledger, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	resolver, err := bom.NewResolver(bom.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create bom resolver", err)
		os.Exit(1)
	}
	engine, err := consumption.NewEngine(resolver, inventoryRepo, ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create consumption engine", err)
		os.Exit(1)
	}

	trackingRepo := tracking.NewRepository(dbClient.DB())
	syncer, err := tracking.NewSyncer(trackingRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking syncer", err)
		os.Exit(1)
	}

	productionService, err := production.NewService(
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
			SkipLazyAdvance:      !cfg.FeatureFlags.LazyAutoAdvance,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create production service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		engine,
		productionService,
		syncer,
		trackingRepo,
		productionMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	batchService, err := batches.NewService(batches.NewRepository(dbClient.DB()), dbClient, engine, ledger, productionMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create batch service", err)
		os.Exit(1)
	}

	forecastService, err := forecast.NewService(inventoryRepo, inventoryRepo, redisClient, logg, forecast.Options{
		WindowDays:          cfg.Production.ForecastWindowDays,
		DefaultLeadTimeDays: cfg.Production.DefaultLeadTimeDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create forecast service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
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
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Health: map[string]controllers.Pinger{
				"db":    dbClient,
				"redis": redisClient,
			},
			Redis:         redisClient,
			Gatherer:      registry,
			Orders:        ordersService,
			Production:    productionService,
			Inventory:     inventoryService,
			Forecast:      forecastService,
			Batches:       batchService,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
