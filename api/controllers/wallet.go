package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/api/middleware"
	"github.com/angelmondragon/gearshare-backend/api/responses"
	"github.com/angelmondragon/gearshare-backend/api/validators"
	"github.com/angelmondragon/gearshare-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/money"
)

const walletCurrency = "USD"

type balanceResponse struct {
	AccountID    uuid.UUID `json:"account_id"`
	BalanceCents int64     `json:"balance_cents"`
	Display      string    `json:"display"`
}

type recordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Succeeded   *bool  `json:"succeeded" validate:"required"`
	Reference   string `json:"reference" validate:"max=128"`
}

// WalletBalance returns the caller's balance derived from the ledger.
func WalletBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return balanceHandler(svc, logg, func(r *http.Request) (uuid.UUID, error) {
		return middleware.ActorIDFromContext(r.Context()), nil
	})
}

// AdminWalletBalance returns any account's balance.
func AdminWalletBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return balanceHandler(svc, logg, func(r *http.Request) (uuid.UUID, error) {
		return validators.ParseUUIDParam(r, "accountId")
	})
}

func balanceHandler(svc ledger.Service, logg *logger.Logger, account func(*http.Request) (uuid.UUID, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, err := account(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		balance, err := svc.BalanceOf(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			AccountID:    accountID,
			BalanceCents: balance,
			Display:      money.Format(balance, walletCurrency),
		})
	}
}

// WalletEntries pages the caller's ledger history, newest first.
func WalletEntries(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries, err := svc.ListEntries(ctx, middleware.ActorIDFromContext(ctx), page)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// RecordPayment books the outcome of an external payment against an account.
// Failed payments are kept for audit and do not move the balance.
func RecordPayment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entry, err := svc.RecordPayment(ctx, ledger.PaymentInput{
			AccountID:   accountID,
			AmountCents: req.AmountCents,
			Succeeded:   *req.Succeeded,
			Reference:   req.Reference,
			ActorID:     middleware.ActorIDFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
