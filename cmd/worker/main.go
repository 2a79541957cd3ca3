package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/router"
	analyticsworker "github.com/angelmondragon/gearshare-backend/internal/analytics/worker"
	"github.com/angelmondragon/gearshare-backend/internal/analytics/writer"
	"github.com/angelmondragon/gearshare-backend/internal/notifications"
	"github.com/angelmondragon/gearshare-backend/pkg/bigquery"
	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/migrate"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/gearshare-backend/pkg/pubsub"
	"github.com/angelmondragon/gearshare-backend/pkg/redis"
)

const serviceName = "worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleConsumer, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Channels:  []notifications.Channel{notifications.NewInAppChannel(notifications.NewRepository(dbClient.DB()))},
		Logger:    logg,
		Metrics:   metrics.NewNotificationMetrics(prometheus.DefaultRegisterer),
		QueueSize: cfg.Notifications.QueueSize,
		Workers:   cfg.Notifications.Workers,
	})
	requireResource(ctx, logg, "notification dispatcher", err)

	notificationConsumer, err := notifications.NewConsumer(dispatcher, pubsubClient.NotificationSubscription(), manager, logg)
	requireResource(ctx, logg, "notification consumer", err)

	consumers := map[string]runner{"notifications": notificationConsumer}
	dependencies := map[string]pinger{"database": dbClient, "redis": redisClient, "pubsub": pubsubClient}

	if cfg.PubSub.AnalyticsTopic != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery client", err)
			}
		}()

		sink, err := writer.New(bqClient, writer.Config{
			EventsTable: cfg.BigQuery.EventsTable,
			BatchSize:   cfg.BigQuery.BatchSize,
		})
		requireResource(ctx, logg, "analytics writer", err)

		routing, err := router.NewRouter(sink, logg, nil)
		requireResource(ctx, logg, "analytics router", err)

		analytics, err := analyticsworker.NewService(pubsubClient.AnalyticsSubscription(), routing, manager, sink, logg)
		requireResource(ctx, logg, "analytics worker", err)

		consumers["analytics"] = analytics
		dependencies["bigquery"] = bqClient
	}

	if cfg.Service.MetricsAddr != "" {
		consumers["metrics"] = runnerFunc(func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
		})
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Dependencies: dependencies,
		Consumers:    consumers,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"consumers":   len(consumers),
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
