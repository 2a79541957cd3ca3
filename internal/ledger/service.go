package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the wallet ledger. Balances are always derived from the entry log.
type Service interface {
	// Reserve places a hold by appending a completed debit, failing with
	// INSUFFICIENT_FUNDS when the account cannot cover it.
	Reserve(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error)
	// Refund returns money to an account. It is never balance-gated.
	Refund(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error)
	// Capture settles a completed booking: commission to the platform, the rest to the owner.
	Capture(ctx context.Context, tx *gorm.DB, input CaptureInput) ([]models.LedgerEntry, error)
	RecordPayment(ctx context.Context, input PaymentInput) (*models.LedgerEntry, error)
	BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*EntryPage, error)
	BookingSummary(ctx context.Context, bookingID uuid.UUID) (*BookingSummary, error)
}

// CaptureInput describes the money split when a rental completes.
type CaptureInput struct {
	BookingID       uuid.UUID
	OwnerID         uuid.UUID
	PlatformID      uuid.UUID
	TotalCents      int64
	CommissionCents int64
}

// PaymentInput is the ledger-side outcome of an external payment.
type PaymentInput struct {
	AccountID   uuid.UUID
	AmountCents int64
	Succeeded   bool
	Reference   string
	ActorID     uuid.UUID
}

type EntryPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// BookingSummary totals the completed entries posted for one booking.
type BookingSummary struct {
	BookingID       uuid.UUID            `json:"booking_id"`
	DebitCents      int64                `json:"debit_cents"`
	RefundCents     int64                `json:"refund_cents"`
	CommissionCents int64                `json:"commission_cents"`
	CreditCents     int64                `json:"credit_cents"`
	Entries         []models.LedgerEntry `json:"entries"`
}

// Balanced reports whether every held cent has been returned or distributed.
func (s BookingSummary) Balanced() bool {
	return s.DebitCents == s.RefundCents+s.CommissionCents+s.CreditCents
}

// Outstanding is the part of the hold not yet refunded or distributed.
func (s BookingSummary) Outstanding() int64 {
	return s.DebitCents - s.RefundCents - s.CommissionCents - s.CreditCents
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService wires the ledger. m may be nil.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error) {
	if err := requireEntryArgs(tx, accountID, amountCents); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	if err := repo.LockAccount(ctx, accountID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "lock wallet account")
	}
	balance, err := repo.Balance(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "read wallet balance")
	}
	if balance < amountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance does not cover the booking total").
			WithDetails(map[string]any{"balance_cents": balance, "required_cents": amountCents})
	}
	return s.append(ctx, repo, accountID, &bookingID, enums.LedgerEntryDebit, enums.LedgerEntryCompleted, amountCents, nil)
}

func (s *service) Refund(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error) {
	if err := requireEntryArgs(tx, accountID, amountCents); err != nil {
		return nil, err
	}
	return s.append(ctx, s.repo.WithTx(tx), accountID, &bookingID, enums.LedgerEntryRefund, enums.LedgerEntryCompleted, amountCents, nil)
}

func (s *service) Capture(ctx context.Context, tx *gorm.DB, input CaptureInput) ([]models.LedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.BookingID == uuid.Nil || input.OwnerID == uuid.Nil || input.PlatformID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking, owner and platform accounts are required")
	}
	if input.CommissionCents < 0 || input.CommissionCents > input.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission must be between zero and the booking total").
			WithDetails(map[string]any{"commission_cents": input.CommissionCents, "total_cents": input.TotalCents})
	}

	repo := s.repo.WithTx(tx)
	entries := make([]models.LedgerEntry, 0, 2)
	if input.CommissionCents > 0 {
		entry, err := s.append(ctx, repo, input.PlatformID, &input.BookingID, enums.LedgerEntryCommission, enums.LedgerEntryCompleted, input.CommissionCents, nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if payout := input.TotalCents - input.CommissionCents; payout > 0 {
		entry, err := s.append(ctx, repo, input.OwnerID, &input.BookingID, enums.LedgerEntryCredit, enums.LedgerEntryCompleted, payout, nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *service) RecordPayment(ctx context.Context, input PaymentInput) (*models.LedgerEntry, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	status := enums.LedgerEntryFailed
	if input.Succeeded {
		status = enums.LedgerEntryCompleted
	}
	var reference *string
	if ref := strings.TrimSpace(input.Reference); ref != "" {
		reference = &ref
	}

	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.append(ctx, s.repo.WithTx(tx), input.AccountID, nil, enums.LedgerEntryCredit, status, input.AmountCents, reference)
		if err != nil {
			return err
		}
		eventID := uuid.New()
		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventID:       eventID,
			EventType:     enums.EventWalletPaymentRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Actor:         &outbox.ActorRef{ID: input.ActorID, Role: enums.ActorRoleSystem},
			OccurredAt:    entry.CreatedAt,
			Data: payloads.WalletPaymentRecordedEvent{
				EventID:     eventID,
				EntryID:     entry.ID,
				AccountID:   entry.AccountID,
				AmountCents: entry.AmountCents,
				Status:      entry.Status,
				Reference:   strings.TrimSpace(input.Reference),
				OccurredAt:  entry.CreatedAt,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "queue payment event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	balance, err := s.repo.Balance(ctx, accountID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDB, err, "read wallet balance")
	}
	return balance, nil
}

func (s *service) ListEntries(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, next, err := s.repo.ListByAccount(ctx, accountID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list ledger entries")
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return &EntryPage{Entries: entries, NextCursor: next}, nil
}

func (s *service) BookingSummary(ctx context.Context, bookingID uuid.UUID) (*BookingSummary, error) {
	entries, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list booking ledger entries")
	}
	return Summarize(bookingID, entries), nil
}

// Summarize folds entries into per-kind totals, ignoring entries that do not
// count toward a balance.
func Summarize(bookingID uuid.UUID, entries []models.LedgerEntry) *BookingSummary {
	summary := &BookingSummary{BookingID: bookingID, Entries: entries}
	if summary.Entries == nil {
		summary.Entries = []models.LedgerEntry{}
	}
	for _, entry := range entries {
		if !entry.Status.CountsTowardBalance() {
			continue
		}
		switch entry.Kind {
		case enums.LedgerEntryDebit:
			summary.DebitCents += entry.AmountCents
		case enums.LedgerEntryRefund:
			summary.RefundCents += entry.AmountCents
		case enums.LedgerEntryCommission:
			summary.CommissionCents += entry.AmountCents
		case enums.LedgerEntryCredit:
			summary.CreditCents += entry.AmountCents
		}
	}
	return summary
}

func (s *service) append(ctx context.Context, repo Repository, accountID uuid.UUID, bookingID *uuid.UUID, kind enums.LedgerEntryKind, status enums.LedgerEntryStatus, amountCents int64, reference *string) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		BookingID:   bookingID,
		Kind:        kind,
		Status:      status,
		AmountCents: amountCents,
		Reference:   reference,
		CreatedAt:   s.now(),
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, fmt.Sprintf("append %s entry", kind))
	}
	s.metrics.ObserveEntry(string(kind), string(status), amountCents)
	return entry, nil
}

func requireEntryArgs(tx *gorm.DB, accountID uuid.UUID, amountCents int64) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
