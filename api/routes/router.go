package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gearshare-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/gearshare-backend/api/controllers/analytics"
	bookingcontrollers "github.com/angelmondragon/gearshare-backend/api/controllers/bookings"
	"github.com/angelmondragon/gearshare-backend/api/middleware"
	"github.com/angelmondragon/gearshare-backend/internal/analytics"
	"github.com/angelmondragon/gearshare-backend/internal/bookings"
	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	"github.com/angelmondragon/gearshare-backend/internal/notifications"
	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/redis"
)

// CacheStore is the Redis surface the HTTP layer needs.
type CacheStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type dlqReader interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

// Params collects everything the router mounts. Analytics is optional; the
// dashboard answers 503 without it.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Cache         CacheStore
	Gatherer      prometheus.Gatherer
	Bookings      bookings.Service
	Ledger        ledger.Service
	Notifications notifications.Service
	DLQ           dlqReader
	Analytics     analytics.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	bookingPolicy := middleware.NewRateLimitPolicy("booking-create", cfg.RateLimit.BookingWindow, cfg.RateLimit.BookingLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    p.Cache,
		}, logg))
	})
	r.Handle("/metrics", metrics.Handler(p.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Cache, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.With(middleware.ActorRateLimit(bookingPolicy, p.Cache, logg)).Post("/", bookingcontrollers.Create(p.Bookings, logg))
			r.Get("/", bookingcontrollers.List(p.Bookings, logg))
			r.Route("/{bookingId}", func(r chi.Router) {
				r.Get("/", bookingcontrollers.Detail(p.Bookings, logg))
				r.Post("/approve", bookingcontrollers.Transition(bookings.CommandApprove, p.Bookings, logg))
				r.Post("/reject", bookingcontrollers.Transition(bookings.CommandReject, p.Bookings, logg))
				r.Post("/cancel", bookingcontrollers.Transition(bookings.CommandCancel, p.Bookings, logg))
				r.Post("/start", bookingcontrollers.Transition(bookings.CommandStart, p.Bookings, logg))
				r.Post("/complete", bookingcontrollers.Complete(p.Bookings, logg))
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(p.Ledger, logg))
			r.Get("/entries", controllers.WalletEntries(p.Ledger, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/read", controllers.MarkAllNotificationsRead(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(p.Cache, logg))

		r.Post("/bookings/{bookingId}/cancel", bookingcontrollers.AdminCancel(p.Bookings, logg))
		r.Route("/wallets/{accountId}", func(r chi.Router) {
			r.Get("/balance", controllers.AdminWalletBalance(p.Ledger, logg))
			r.Post("/payments", controllers.RecordPayment(p.Ledger, logg))
		})
		r.Get("/outbox/dlq", controllers.ListOutboxDLQ(p.DLQ, logg))
		r.Get("/outbox/dlq/{eventId}", controllers.OutboxDLQEntry(p.DLQ, logg))
		r.Get("/analytics/bookings", analyticscontrollers.BookingAnalytics(p.Analytics, logg, nil))
	})

	return r
}
