package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/money"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

// DateLayout is the wire format of booking calendar dates.
const DateLayout = "2006-01-02"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger is the slice of the wallet the engine drives inside its transactions.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error)
	Refund(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amountCents int64, bookingID uuid.UUID) (*models.LedgerEntry, error)
	Capture(ctx context.Context, tx *gorm.DB, input ledger.CaptureInput) ([]models.LedgerEntry, error)
	BookingSummary(ctx context.Context, bookingID uuid.UUID) (*ledger.BookingSummary, error)
}

// Notifier receives every committed booking event. Implementations must not
// block the caller.
type Notifier interface {
	Notify(ctx context.Context, event payloads.BookingEvent)
}

// Service is the booking lifecycle engine, the only code path that changes a
// booking's status.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Booking, error)
	Approve(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Reject(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Start(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, input CompleteInput) (*models.Booking, error)
	Get(ctx context.Context, bookingID, viewerID uuid.UUID) (*Detail, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ExpirePending(ctx context.Context, limit int) (int, error)
}

type CreateInput struct {
	EquipmentID     uuid.UUID
	OwnerID         uuid.UUID
	RenterID        uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	TotalPriceCents int64
	// CommissionCents fixes the platform cut up front. When nil it is derived
	// from the configured commission rate.
	CommissionCents *int64
}

type CompleteInput struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	// CommissionCents overrides the commission agreed at creation.
	CommissionCents *int64
}

type ListParams struct {
	AccountID uuid.UUID
	Status    *enums.BookingStatus
	Role      *enums.ActorRole
	Limit     int
	Cursor    string
}

type ListResult struct {
	Bookings   []models.Booking `json:"bookings"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Detail is a booking plus the ledger movements posted for it.
type Detail struct {
	Booking    *models.Booking        `json:"booking"`
	ViewerRole enums.ActorRole        `json:"viewer_role"`
	Ledger     *ledger.BookingSummary `json:"ledger"`
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Ledger   Ledger
	Outbox   outbox.Emitter
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  *metrics.BookingMetrics
	Config   config.BookingConfig
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   Ledger
	outbox   outbox.Emitter
	notifier Notifier
	logg     *logger.Logger
	metrics  *metrics.BookingMetrics
	loc      *time.Location
	rate     decimal.Decimal
	platform uuid.UUID
	now      func() time.Time
}

// NewService builds the lifecycle engine. Notifier and Metrics may be nil.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	loc, err := params.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("booking timezone: %w", err)
	}
	rate, err := params.Config.Rate()
	if err != nil {
		return nil, fmt.Errorf("commission rate: %w", err)
	}
	platform, err := params.Config.PlatformAccount()
	if err != nil {
		return nil, fmt.Errorf("platform account: %w", err)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     logg,
		metrics:  params.Metrics,
		loc:      loc,
		rate:     rate,
		platform: platform,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Booking, error) {
	booking, err := s.newBooking(input)
	if err != nil {
		s.recordFailure(ctx, "create", err)
		return nil, err
	}

	var event payloads.BookingEvent
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "create booking")
		}
		if _, err := s.ledger.Reserve(ctx, tx, booking.RenterID, booking.TotalPriceCents, booking.ID); err != nil {
			return err
		}
		event = newBookingEvent(booking, "", booking.RenterID, enums.ActorRoleRenter, booking.CreatedAt)
		return s.emit(ctx, tx, enums.EventBookingCreated, event)
	})
	if err != nil {
		s.recordFailure(ctx, "create", err)
		return nil, err
	}

	s.committed(ctx, event)
	return booking, nil
}

func (s *service) Approve(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.apply(ctx, CommandApprove, bookingID, actorID, nil)
}

func (s *service) Reject(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.apply(ctx, CommandReject, bookingID, actorID, nil)
}

func (s *service) Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.apply(ctx, CommandCancel, bookingID, actorID, nil)
}

func (s *service) Start(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.apply(ctx, CommandStart, bookingID, actorID, nil)
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Booking, error) {
	return s.apply(ctx, CommandComplete, input.BookingID, input.ActorID, input.CommissionCents)
}

// apply runs one table-driven transition: guards, the CAS status write, the
// ledger effect and the outbox row share a transaction. The notifier only sees
// the event after commit.
func (s *service) apply(ctx context.Context, cmd Command, bookingID, actorID uuid.UUID, commission *int64) (*models.Booking, error) {
	rule, ok := transitions[cmd]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown booking command %q", cmd))
	}
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	ctx = s.logg.WithBookingID(ctx, bookingID.String())

	var (
		updated *models.Booking
		event   payloads.BookingEvent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.FindByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "load booking")
		}

		role, party := resolveActor(booking, actorID)
		if !party || !rule.allowsActor(role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("actor may not %s this booking", cmd))
		}
		if !rule.allowsFrom(booking.Status) {
			return invalidTransition(cmd, booking.Status)
		}

		now := s.now().UTC()
		update := StatusUpdate{ID: booking.ID, From: booking.Status, To: rule.to, At: now}
		switch cmd {
		case CommandStart:
			if days := daysUntil(booking.StartDate, now, s.loc); days > 0 {
				return pkgerrors.TooEarly(days)
			}
			update.RentalStartedAt = &now
		case CommandComplete:
			amount, err := resolveCommission(booking, commission)
			if err != nil {
				return err
			}
			update.CommissionCents = &amount
			update.CompletedAt = &now
		}

		applied, err := repo.UpdateStatus(ctx, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "update booking status")
		}
		if !applied {
			return invalidTransition(cmd, booking.Status)
		}

		if err := s.applyLedgerEffect(ctx, tx, rule.effect, booking, update); err != nil {
			return err
		}

		from := booking.Status
		booking.Status = update.To
		booking.UpdatedAt = now
		if update.CommissionCents != nil {
			booking.CommissionCents = *update.CommissionCents
		}
		if update.RentalStartedAt != nil {
			booking.RentalStartedAt = update.RentalStartedAt
		}
		if update.CompletedAt != nil {
			booking.CompletedAt = update.CompletedAt
		}

		event = newBookingEvent(booking, from, actorID, role, now)
		if err := s.emit(ctx, tx, enums.EventBookingStatusChanged, event); err != nil {
			return err
		}
		updated = booking
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, string(cmd), err)
		return nil, err
	}

	s.committed(ctx, event)
	return updated, nil
}

func (s *service) applyLedgerEffect(ctx context.Context, tx *gorm.DB, effect ledgerEffect, booking *models.Booking, update StatusUpdate) error {
	switch effect {
	case effectRefund:
		_, err := s.ledger.Refund(ctx, tx, booking.RenterID, booking.TotalPriceCents, booking.ID)
		return err
	case effectCapture:
		_, err := s.ledger.Capture(ctx, tx, ledger.CaptureInput{
			BookingID:       booking.ID,
			OwnerID:         booking.OwnerID,
			PlatformID:      s.platform,
			TotalCents:      booking.TotalPriceCents,
			CommissionCents: *update.CommissionCents,
		})
		return err
	}
	return nil
}

func (s *service) Get(ctx context.Context, bookingID, viewerID uuid.UUID) (*Detail, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "load booking")
	}
	role, party := resolveActor(booking, viewerID)
	if !party {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking not visible to actor")
	}
	summary, err := s.ledger.BookingSummary(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Booking: booking, ViewerRole: role, Ledger: summary}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if params.Role != nil && *params.Role != enums.ActorRoleOwner && *params.Role != enums.ActorRoleRenter {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be owner or renter")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListFilter{
		AccountID: params.AccountID,
		Role:      params.Role,
		Status:    params.Status,
		Limit:     params.Limit,
		Cursor:    params.Cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list bookings")
	}
	if rows == nil {
		rows = []models.Booking{}
	}
	return &ListResult{Bookings: rows, NextCursor: next}, nil
}

// ExpirePending cancels, as the system actor, pending bookings the owner never
// answered before the start date. Bookings changed concurrently are skipped.
func (s *service) ExpirePending(ctx context.Context, limit int) (int, error) {
	rows, err := s.repo.FindExpiredPending(ctx, s.today(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDB, err, "find expired bookings")
	}

	var (
		expired int
		errs    error
	)
	for _, booking := range rows {
		if _, err := s.Cancel(ctx, booking.ID, SystemActorID); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire booking %s: %w", booking.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) newBooking(input CreateInput) (*models.Booking, error) {
	if input.EquipmentID == uuid.Nil || input.OwnerID == uuid.Nil || input.RenterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "equipment, owner and renter ids are required")
	}
	if input.OwnerID == input.RenterID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "renter cannot book their own equipment")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	start, end := civilDate(input.StartDate), civilDate(input.EndDate)
	if end.Before(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date must not precede start date")
	}
	if input.TotalPriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total price must be positive")
	}

	commission := money.Commission(input.TotalPriceCents, s.rate)
	if input.CommissionCents != nil {
		commission = *input.CommissionCents
		if err := validateCommission(commission, input.TotalPriceCents); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	return &models.Booking{
		ID:              uuid.New(),
		EquipmentID:     input.EquipmentID,
		OwnerID:         input.OwnerID,
		RenterID:        input.RenterID,
		StartDate:       start,
		EndDate:         end,
		TotalPriceCents: input.TotalPriceCents,
		CommissionCents: commission,
		Status:          enums.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, event payloads.BookingEvent) error {
	_, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventID:       event.EventID,
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   event.BookingID,
		Actor:         &outbox.ActorRef{ID: event.ActorID, Role: event.ActorRole},
		Data:          event,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "queue booking event")
	}
	return nil
}

func (s *service) committed(ctx context.Context, event payloads.BookingEvent) {
	s.metrics.ObserveTransition(string(event.FromStatus), string(event.ToStatus))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"booking_id":  event.BookingID.String(),
		"event_id":    event.EventID.String(),
		"from_status": string(event.FromStatus),
		"to_status":   string(event.ToStatus),
		"actor_id":    event.ActorID.String(),
		"actor_role":  string(event.ActorRole),
	})
	s.logg.Info(logCtx, "booking.transition.applied")

	if s.notifier != nil {
		s.notifier.Notify(ctx, event)
	}
}

func (s *service) recordFailure(ctx context.Context, command string, err error) {
	typed := pkgerrors.As(err)
	code := pkgerrors.CodeInternal
	if typed != nil {
		code = typed.Code()
	}
	s.metrics.ObserveFailure(command, string(code))

	logCtx := s.logg.WithFields(ctx, map[string]any{"command": command, "code": string(code)})
	if pkgerrors.MetadataFor(code).HTTPStatus >= 500 {
		s.logg.Error(logCtx, "booking.command.failed", err)
		return
	}
	s.logg.Debug(logCtx, "booking.command.rejected")
}

// today is the current calendar date in the booking timezone, as UTC midnight.
func (s *service) today() time.Time {
	return civilDate(s.now().In(s.loc))
}

func newBookingEvent(b *models.Booking, from enums.BookingStatus, actorID uuid.UUID, role enums.ActorRole, at time.Time) payloads.BookingEvent {
	return payloads.BookingEvent{
		EventID:         uuid.New(),
		BookingID:       b.ID,
		EquipmentID:     b.EquipmentID,
		RenterID:        b.RenterID,
		OwnerID:         b.OwnerID,
		FromStatus:      from,
		ToStatus:        b.Status,
		ActorID:         actorID,
		ActorRole:       role,
		TotalPriceCents: b.TotalPriceCents,
		CommissionCents: b.CommissionCents,
		StartDate:       b.StartDate.UTC().Format(DateLayout),
		EndDate:         b.EndDate.UTC().Format(DateLayout),
		OccurredAt:      at,
	}
}

func invalidTransition(cmd Command, status enums.BookingStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot %s a %s booking", cmd, status)).
		WithDetails(map[string]any{"command": string(cmd), "status": string(status)})
}

func resolveCommission(booking *models.Booking, override *int64) (int64, error) {
	amount := booking.CommissionCents
	if override != nil {
		amount = *override
	}
	if err := validateCommission(amount, booking.TotalPriceCents); err != nil {
		return 0, err
	}
	return amount, nil
}

func validateCommission(amount, total int64) error {
	if amount < 0 || amount > total {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission must be between zero and the total price").
			WithDetails(map[string]any{"commission_cents": amount, "total_price_cents": total})
	}
	return nil
}

// civilDate keeps the calendar fields of t and drops the rest.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysUntil counts whole calendar days from today in loc to start.
func daysUntil(start, now time.Time, loc *time.Location) int {
	today := civilDate(now.In(loc))
	return int(civilDate(start.UTC()).Sub(today).Hours() / 24)
}
