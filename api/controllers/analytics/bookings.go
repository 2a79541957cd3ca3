package analytics

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/gearshare-backend/api/responses"
	"github.com/angelmondragon/gearshare-backend/api/validators"
	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

type bookingQuerier interface {
	Query(ctx context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error)
}

// BookingAnalytics serves the admin booking dashboard from BigQuery.
func BookingAnalytics(service bookingQuerier, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if service == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "analytics is not configured"))
			return
		}

		start, end, err := resolveAnalyticsRange(r, now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ownerID, err := validators.ParseOptionalUUIDQuery(r, "owner_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		req := types.BookingQueryRequest{Start: start, End: end}
		if ownerID != nil {
			req.OwnerID = ownerID.String()
		}
		result, err := service.Query(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
