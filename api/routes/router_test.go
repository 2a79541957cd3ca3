package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gearshare-backend/internal/bookings"
	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	"github.com/angelmondragon/gearshare-backend/pkg/auth"
	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubBookings struct {
	bookings.Service
	approve func(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	cancel  func(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
}

func (s stubBookings) Approve(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.approve(ctx, bookingID, actorID)
}

func (s stubBookings) Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.cancel(ctx, bookingID, actorID)
}

type stubLedger struct {
	ledger.Service
	balance int64
}

func (s stubLedger) BalanceOf(context.Context, uuid.UUID) (int64, error) { return s.balance, nil }

type stubDLQ struct{}

func (stubDLQ) List(context.Context, int) ([]models.OutboxDLQ, error) { return nil, nil }

func (stubDLQ) FindByEventID(context.Context, uuid.UUID) (*models.OutboxDLQ, error) { return nil, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "gearshare-test", ExpirationMinutes: 5},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

func newTestRouter(cfg *config.Config, override func(*Params)) http.Handler {
	p := Params{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard}),
		DB:       stubPinger{},
		Gatherer: prometheus.NewRegistry(),
		Ledger:   stubLedger{balance: 4200},
		DLQ:      stubDLQ{},
	}
	if override != nil {
		override(&p)
	}
	return NewRouter(p)
}

func bearer(t *testing.T, cfg *config.Config, identity auth.ActorIdentity) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), identity)
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router http.Handler, method, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready", "").Code)

	down := newTestRouter(testConfig(), func(p *Params) { p.DB = stubPinger{err: context.DeadlineExceeded} })
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/health/ready", "").Code)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gearshare_router_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := newTestRouter(testConfig(), func(p *Params) { p.Gatherer = reg })
	resp := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "gearshare_router_test_total 1")
}

func TestMemberRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	for _, path := range []string{"/api/v1/bookings", "/api/v1/wallet/balance", "/api/v1/notifications"} {
		assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, path, "").Code, path)
	}
}

func TestWalletBalanceWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	member := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember}

	resp := serve(router, http.MethodGet, "/api/v1/wallet/balance", bearer(t, cfg, member))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"balance_cents":4200`)
}

func TestApproveRoutesCallerAsActor(t *testing.T) {
	cfg := testConfig()
	owner := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember}
	bookingID := uuid.New()
	var gotBooking, gotActor uuid.UUID
	router := newTestRouter(cfg, func(p *Params) {
		p.Bookings = stubBookings{approve: func(_ context.Context, id, actor uuid.UUID) (*models.Booking, error) {
			gotBooking, gotActor = id, actor
			return &models.Booking{ID: id, Status: enums.BookingStatusConfirmed}, nil
		}}
	})

	resp := serve(router, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/approve", bearer(t, cfg, owner))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, bookingID, gotBooking)
	assert.Equal(t, owner.UserID, gotActor)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	member := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember}
	admin := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/admin/v1/outbox/dlq", bearer(t, cfg, member)).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/v1/outbox/dlq", bearer(t, cfg, admin)).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/admin/v1/outbox/dlq/"+uuid.NewString(), bearer(t, cfg, admin)).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/v1/wallets/"+uuid.NewString()+"/balance", bearer(t, cfg, admin)).Code)
}

func TestAdminCancelUsesSystemActor(t *testing.T) {
	cfg := testConfig()
	admin := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	var gotActor uuid.UUID
	router := newTestRouter(cfg, func(p *Params) {
		p.Bookings = stubBookings{cancel: func(_ context.Context, id, actor uuid.UUID) (*models.Booking, error) {
			gotActor = actor
			return &models.Booking{ID: id, Status: enums.BookingStatusCancelled}, nil
		}}
	})

	resp := serve(router, http.MethodPost, "/api/admin/v1/bookings/"+uuid.NewString()+"/cancel", bearer(t, cfg, admin))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, bookings.SystemActorID, gotActor)
}

func TestAnalyticsWithoutBigQueryIsUnavailable(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	admin := auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	resp := serve(router, http.MethodGet, "/api/admin/v1/analytics/bookings?preset=7d", bearer(t, cfg, admin))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(resp.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))
}
