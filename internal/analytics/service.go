package analytics

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/query"
	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
	"github.com/angelmondragon/gearshare-backend/pkg/bigquery"
)

// Service answers admin booking dashboard queries.
type Service interface {
	Query(ctx context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error)
}

type service struct {
	bookings query.BookingService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, project, dataset, table string) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	bookings, err := query.NewBookingService(query.FromClient(client), project, dataset, table)
	if err != nil {
		return nil, err
	}
	return &service{bookings: bookings}, nil
}

func (s *service) Query(ctx context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error) {
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("analytics window end %s precedes start %s", req.End, req.Start)
	}
	return s.bookings.Query(ctx, req)
}
