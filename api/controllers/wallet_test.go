package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	"github.com/angelmondragon/gearshare-backend/pkg/auth"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

type testLedgerService struct {
	ledger.Service

	balanceFn func(ctx context.Context, accountID uuid.UUID) (int64, error)
	entriesFn func(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*ledger.EntryPage, error)
	paymentFn func(ctx context.Context, input ledger.PaymentInput) (*models.LedgerEntry, error)
}

func (s *testLedgerService) BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.balanceFn(ctx, accountID)
}

func (s *testLedgerService) ListEntries(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*ledger.EntryPage, error) {
	return s.entriesFn(ctx, accountID, params)
}

func (s *testLedgerService) RecordPayment(ctx context.Context, input ledger.PaymentInput) (*models.LedgerEntry, error) {
	return s.paymentFn(ctx, input)
}

var admin = auth.ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleAdmin}

func TestWalletBalanceUsesCaller(t *testing.T) {
	svc := &testLedgerService{balanceFn: func(_ context.Context, accountID uuid.UUID) (int64, error) {
		if accountID != member.UserID {
			t.Fatalf("unexpected account %s", accountID)
		}
		return 10050, nil
	}}
	resp := httptest.NewRecorder()
	WalletBalance(svc, logger.Nop())(resp, asActor(httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil), member))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data balanceResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.BalanceCents != 10050 || envelope.Data.Display != "100.50 USD" {
		t.Fatalf("unexpected balance payload %+v", envelope.Data)
	}
}

func TestAdminWalletBalanceReadsPathAccount(t *testing.T) {
	account := uuid.New()
	svc := &testLedgerService{balanceFn: func(_ context.Context, accountID uuid.UUID) (int64, error) {
		if accountID != account {
			t.Fatalf("unexpected account %s", accountID)
		}
		return 0, nil
	}}
	req := asActor(addRouteParam(httptest.NewRequest(http.MethodGet, "/", nil), "accountId", account.String()), admin)
	resp := httptest.NewRecorder()
	AdminWalletBalance(svc, logger.Nop())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestWalletEntriesPaginates(t *testing.T) {
	var got pagination.Params
	svc := &testLedgerService{entriesFn: func(_ context.Context, _ uuid.UUID, params pagination.Params) (*ledger.EntryPage, error) {
		got = params
		return &ledger.EntryPage{Entries: []models.LedgerEntry{}}, nil
	}}
	resp := httptest.NewRecorder()
	WalletEntries(svc, logger.Nop())(resp, asActor(httptest.NewRequest(http.MethodGet, "/api/v1/wallet/entries?limit=3", nil), member))
	if resp.Code != http.StatusOK || got.Limit != 3 {
		t.Fatalf("unexpected status %d params %+v", resp.Code, got)
	}
}

func TestRecordPayment(t *testing.T) {
	account := uuid.New()
	var got ledger.PaymentInput
	svc := &testLedgerService{paymentFn: func(_ context.Context, input ledger.PaymentInput) (*models.LedgerEntry, error) {
		got = input
		return &models.LedgerEntry{ID: uuid.New(), AccountID: input.AccountID, AmountCents: input.AmountCents, CreatedAt: time.Now()}, nil
	}}

	body := `{"amount_cents":2500,"succeeded":false,"reference":"psp-123"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = asActor(addRouteParam(req, "accountId", account.String()), admin)
	resp := httptest.NewRecorder()
	RecordPayment(svc, logger.Nop())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.AccountID != account || got.AmountCents != 2500 || got.Succeeded || got.Reference != "psp-123" || got.ActorID != admin.UserID {
		t.Fatalf("unexpected payment input %+v", got)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := &testLedgerService{paymentFn: func(context.Context, ledger.PaymentInput) (*models.LedgerEntry, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	for _, body := range []string{`{"amount_cents":0,"succeeded":true}`, `{"amount_cents":100}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req = asActor(addRouteParam(req, "accountId", uuid.NewString()), admin)
		resp := httptest.NewRecorder()
		RecordPayment(svc, logger.Nop())(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", body, resp.Code)
		}
	}
}

type stubDLQ struct {
	rows []models.OutboxDLQ
	err  error
}

func (s stubDLQ) List(context.Context, int) ([]models.OutboxDLQ, error) { return s.rows, s.err }

func (s stubDLQ) FindByEventID(_ context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	for i := range s.rows {
		if s.rows[i].EventID == eventID {
			return &s.rows[i], nil
		}
	}
	return nil, s.err
}

func TestOutboxDLQEntry(t *testing.T) {
	eventID := uuid.New()
	repo := stubDLQ{rows: []models.OutboxDLQ{{ID: uuid.New(), EventID: eventID, ErrorReason: enums.OutboxDLQReasonNonRetryable}}}
	cases := []struct {
		param string
		want  int
	}{
		{eventID.String(), http.StatusOK},
		{uuid.NewString(), http.StatusNotFound},
		{"not-a-uuid", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		req := addRouteParam(httptest.NewRequest(http.MethodGet, "/", nil), "eventId", tc.param)
		OutboxDLQEntry(repo, logger.Nop())(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.param, tc.want, resp.Code)
		}
	}
}

func TestListOutboxDLQ(t *testing.T) {
	resp := httptest.NewRecorder()
	ListOutboxDLQ(stubDLQ{rows: []models.OutboxDLQ{{ID: uuid.New(), ErrorReason: enums.OutboxDLQReasonMaxAttempts}}}, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"events"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	ListOutboxDLQ(stubDLQ{err: pkgerrors.New(pkgerrors.CodeDB, "boom")}, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
