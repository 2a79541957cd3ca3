package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/gearshare-backend/pkg/db"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

type ledgerFixture struct {
	conn *gorm.DB
	tx   *db.Client
	svc  *service
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	client := db.NewFromConn(conn)
	svc, err := NewService(NewRepository(conn), client, outbox.NewService(outbox.NewRepository(conn), nil), nil)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	impl := svc.(*service)
	impl.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return &ledgerFixture{conn: conn, tx: client, svc: impl}
}

func (f *ledgerFixture) fund(t *testing.T, account uuid.UUID, cents int64) {
	t.Helper()
	_, err := f.svc.RecordPayment(context.Background(), PaymentInput{AccountID: account, AmountCents: cents, Succeeded: true, Reference: "seed"})
	require.NoError(t, err)
}

func (f *ledgerFixture) balance(t *testing.T, account uuid.UUID) int64 {
	t.Helper()
	balance, err := f.svc.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return balance
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestReserveRejectsInsufficientFunds(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	renter := uuid.New()
	f.fund(t, renter, 5000)

	err := f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Reserve(ctx, tx, renter, 10000, uuid.New())
		return err
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientFunds, typed.Code())
	assert.Equal(t, map[string]any{"balance_cents": int64(5000), "required_cents": int64(10000)}, typed.Details())
	assert.Equal(t, int64(5000), f.balance(t, renter))

	var debits int64
	require.NoError(t, f.conn.Model(&models.LedgerEntry{}).Where("kind = ?", enums.LedgerEntryDebit).Count(&debits).Error)
	assert.Zero(t, debits)
}

func TestReserveAndRefundMoveBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	renter := uuid.New()
	booking := uuid.New()
	f.fund(t, renter, 15000)

	require.NoError(t, f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := f.svc.Reserve(ctx, tx, renter, 10000, booking)
		if err != nil {
			return err
		}
		assert.Equal(t, enums.LedgerEntryDebit, entry.Kind)
		assert.Equal(t, booking, *entry.BookingID)
		return nil
	}))
	assert.Equal(t, int64(5000), f.balance(t, renter))

	require.NoError(t, f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Refund(ctx, tx, renter, 10000, booking)
		return err
	}))
	assert.Equal(t, int64(15000), f.balance(t, renter))

	summary, err := f.svc.BookingSummary(ctx, booking)
	require.NoError(t, err)
	assert.True(t, summary.Balanced())
	assert.Len(t, summary.Entries, 2)
}

func TestCaptureSplitsCommissionAndPayout(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	renter, owner, platform := uuid.New(), uuid.New(), uuid.New()
	booking := uuid.New()
	f.fund(t, renter, 10000)

	require.NoError(t, f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.svc.Reserve(ctx, tx, renter, 10000, booking); err != nil {
			return err
		}
		entries, err := f.svc.Capture(ctx, tx, CaptureInput{
			BookingID:       booking,
			OwnerID:         owner,
			PlatformID:      platform,
			TotalCents:      10000,
			CommissionCents: 1000,
		})
		if err != nil {
			return err
		}
		assert.Len(t, entries, 2)
		return nil
	}))

	assert.Equal(t, int64(0), f.balance(t, renter))
	assert.Equal(t, int64(9000), f.balance(t, owner))
	assert.Equal(t, int64(1000), f.balance(t, platform))

	summary, err := f.svc.BookingSummary(ctx, booking)
	require.NoError(t, err)
	assert.True(t, summary.Balanced())
	assert.Equal(t, int64(1000), summary.CommissionCents)
	assert.Equal(t, int64(9000), summary.CreditCents)
}

func TestCaptureSkipsZeroLegs(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	owner, platform := uuid.New(), uuid.New()

	require.NoError(t, f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entries, err := f.svc.Capture(ctx, tx, CaptureInput{BookingID: uuid.New(), OwnerID: owner, PlatformID: platform, TotalCents: 500})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, enums.LedgerEntryCredit, entries[0].Kind)

		entries, err = f.svc.Capture(ctx, tx, CaptureInput{BookingID: uuid.New(), OwnerID: owner, PlatformID: platform, TotalCents: 500, CommissionCents: 500})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, enums.LedgerEntryCommission, entries[0].Kind)
		return nil
	}))
}

func TestCaptureRejectsCommissionOutOfRange(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	err := f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Capture(ctx, tx, CaptureInput{BookingID: uuid.New(), OwnerID: uuid.New(), PlatformID: uuid.New(), TotalCents: 500, CommissionCents: 501})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordPaymentEmitsEventAndIgnoresFailedPayments(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	account := uuid.New()

	entry, err := f.svc.RecordPayment(ctx, PaymentInput{AccountID: account, AmountCents: 2500, Succeeded: false, Reference: " pay_1 "})
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerEntryFailed, entry.Status)
	assert.Equal(t, "pay_1", *entry.Reference)
	assert.Equal(t, int64(0), f.balance(t, account))

	_, err = f.svc.RecordPayment(ctx, PaymentInput{AccountID: account, AmountCents: 2500, Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), f.balance(t, account))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventWalletPaymentRecorded).Find(&events).Error)
	assert.Len(t, events, 2)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{AccountID: account, AmountCents: 0, Succeeded: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBalanceReplayMatchesRunningTotal(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	account := uuid.New()
	var running int64

	for i := 0; i < 60; i++ {
		amount := int64(rng.Intn(5000) + 1)
		switch rng.Intn(4) {
		case 0:
			f.fund(t, account, amount)
			running += amount
		case 1:
			err := f.tx.WithTx(ctx, func(tx *gorm.DB) error {
				_, err := f.svc.Reserve(ctx, tx, account, amount, uuid.New())
				return err
			})
			if running >= amount {
				require.NoError(t, err)
				running -= amount
			} else {
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
			}
		case 2:
			require.NoError(t, f.tx.WithTx(ctx, func(tx *gorm.DB) error {
				_, err := f.svc.Refund(ctx, tx, account, amount, uuid.New())
				return err
			}))
			running += amount
		case 3:
			_, err := f.svc.RecordPayment(ctx, PaymentInput{AccountID: account, AmountCents: amount, Succeeded: false})
			require.NoError(t, err)
		}
		require.Equal(t, running, f.balance(t, account), "step %d", i)
	}

	var entries []models.LedgerEntry
	require.NoError(t, f.conn.Where("account_id = ?", account).Find(&entries).Error)
	var replay int64
	for _, entry := range entries {
		replay += entry.SignedAmount()
	}
	assert.Equal(t, running, replay)
}

func TestListEntriesPaginates(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	account := uuid.New()
	for i := 0; i < 5; i++ {
		f.fund(t, account, int64(100*(i+1)))
	}

	first, err := f.svc.ListEntries(ctx, account, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, int64(500), first.Entries[0].AmountCents)

	second, err := f.svc.ListEntries(ctx, account, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, int64(100), second.Entries[1].AmountCents)

	_, err = f.svc.ListEntries(ctx, account, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSummarizeIgnoresFailedEntries(t *testing.T) {
	booking := uuid.New()
	summary := Summarize(booking, []models.LedgerEntry{
		{Kind: enums.LedgerEntryDebit, Status: enums.LedgerEntryCompleted, AmountCents: 1000},
		{Kind: enums.LedgerEntryRefund, Status: enums.LedgerEntryFailed, AmountCents: 1000},
	})
	assert.False(t, summary.Balanced())
	assert.Equal(t, int64(1000), summary.Outstanding())
}
