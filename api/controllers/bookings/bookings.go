package bookings

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/api/middleware"
	"github.com/angelmondragon/gearshare-backend/api/responses"
	"github.com/angelmondragon/gearshare-backend/api/validators"
	internalbookings "github.com/angelmondragon/gearshare-backend/internal/bookings"
	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

type createBookingRequest struct {
	EquipmentID     string `json:"equipment_id" validate:"required,uuid"`
	OwnerID         string `json:"owner_id" validate:"required,uuid"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"end_date" validate:"required,datetime=2006-01-02"`
	TotalPriceCents int64  `json:"total_price_cents" validate:"gt=0"`
	CommissionCents *int64 `json:"commission_cents,omitempty" validate:"omitempty,gte=0"`
}

type completeBookingRequest struct {
	CommissionCents *int64 `json:"commission_cents,omitempty" validate:"omitempty,gte=0"`
}

// Create opens a booking for the authenticated renter and reserves the total
// price from their wallet.
func Create(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := req.toInput(middleware.ActorIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		booking, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

func (req createBookingRequest) toInput(renterID uuid.UUID) (internalbookings.CreateInput, error) {
	start, err := validators.ParseDate(req.StartDate, "start_date")
	if err != nil {
		return internalbookings.CreateInput{}, err
	}
	end, err := validators.ParseDate(req.EndDate, "end_date")
	if err != nil {
		return internalbookings.CreateInput{}, err
	}
	return internalbookings.CreateInput{
		EquipmentID:     uuid.MustParse(req.EquipmentID),
		OwnerID:         uuid.MustParse(req.OwnerID),
		RenterID:        renterID,
		StartDate:       start,
		EndDate:         end,
		TotalPriceCents: req.TotalPriceCents,
		CommissionCents: req.CommissionCents,
	}, nil
}

// List pages the caller's bookings, optionally filtered by status and by the
// side (owner or renter) the caller is on.
func List(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params := internalbookings.ListParams{
			AccountID: middleware.ActorIDFromContext(ctx),
			Limit:     page.Limit,
			Cursor:    page.Cursor,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseBookingStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			role := enums.ActorRole(raw)
			params.Role = &role
		}

		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Detail returns a booking with its ledger summary. Only the two parties may see it.
func Detail(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		detail, err := svc.Get(ctx, bookingID, middleware.ActorIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type commandFunc func(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error)

// Transition runs one of approve, reject, cancel or start as the caller.
func Transition(cmd internalbookings.Command, svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(commandFor(cmd, svc), logg, middleware.ActorIDFromContext)
}

// AdminCancel cancels a booking as the platform itself.
func AdminCancel(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(commandFor(internalbookings.CommandCancel, svc), logg, func(context.Context) uuid.UUID {
		return internalbookings.SystemActorID
	})
}

func commandFor(cmd internalbookings.Command, svc internalbookings.Service) commandFunc {
	if svc == nil {
		return nil
	}
	switch cmd {
	case internalbookings.CommandApprove:
		return svc.Approve
	case internalbookings.CommandReject:
		return svc.Reject
	case internalbookings.CommandCancel:
		return svc.Cancel
	case internalbookings.CommandStart:
		return svc.Start
	}
	return nil
}

func transition(run commandFunc, logg *logger.Logger, actor func(context.Context) uuid.UUID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if run == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking command unavailable"))
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithBookingID(ctx, bookingID.String())
		}
		booking, err := run(ctx, bookingID, actor(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// Complete closes an ongoing rental and settles the ledger. The body is optional
// and may override the commission agreed at creation.
func Complete(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req completeBookingRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithBookingID(ctx, bookingID.String())
		}
		booking, err := svc.Complete(ctx, internalbookings.CompleteInput{
			BookingID:       bookingID,
			ActorID:         middleware.ActorIDFromContext(ctx),
			CommissionCents: req.CommissionCents,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}
