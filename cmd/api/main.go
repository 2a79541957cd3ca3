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

	"github.com/angelmondragon/gearshare-backend/api/routes"
	"github.com/angelmondragon/gearshare-backend/internal/analytics"
	"github.com/angelmondragon/gearshare-backend/internal/bookings"
	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	"github.com/angelmondragon/gearshare-backend/internal/notifications"
	"github.com/angelmondragon/gearshare-backend/pkg/bigquery"
	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/migrate"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox"
	"github.com/angelmondragon/gearshare-backend/pkg/redis"
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
		Console:     cfg.App.ConsoleLogs(),
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationRepo := notifications.NewRepository(dbClient.DB())
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	// Inline delivery covers deployments without the Pub/Sub worker. The
	// in-app channel dedupes by event id, so running both is safe.
	var notifier bookings.Notifier
	if cfg.FeatureFlags.InlineNotifications {
		dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
			Channels:  []notifications.Channel{notifications.NewInAppChannel(notificationRepo)},
			Logger:    logg,
			Metrics:   metrics.NewNotificationMetrics(prometheus.DefaultRegisterer),
			QueueSize: cfg.Notifications.QueueSize,
			Workers:   cfg.Notifications.Workers,
		})
		if err != nil {
			logg.Error(ctx, "failed to create notification dispatcher", err)
			os.Exit(1)
		}
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "notification dispatcher stopped", err)
			}
		}()
		notifier = dispatcher
	}

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, emitter, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}
	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:     bookings.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Ledger:   ledgerService,
		Outbox:   emitter,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		Config:   cfg.Booking,
	})
	if err != nil {
		logg.Error(ctx, "failed to create booking service", err)
		os.Exit(1)
	}

	var analyticsService analytics.Service
	if cfg.PubSub.AnalyticsTopic != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery client", err)
			}
		}()
		analyticsService, err = analytics.NewService(bqClient, bqClient.ProjectID(), cfg.BigQuery.Dataset, bqClient.EventsTable())
		if err != nil {
			logg.Error(ctx, "failed to create analytics service", err)
			os.Exit(1)
		}
	}

	handler := routes.NewRouter(routes.Params{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Cache:         redisClient,
		Gatherer:      prometheus.DefaultGatherer,
		Bookings:      bookingService,
		Ledger:        ledgerService,
		Notifications: notificationService,
		DLQ:           outbox.NewDLQRepository(dbClient.DB()),
		Analytics:     analyticsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}
