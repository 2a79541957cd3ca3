package query

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
	"github.com/angelmondragon/gearshare-backend/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
)

const (
	requestsSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(*) AS value
FROM %s
WHERE %s
  AND event_type = 'booking_created'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	completedSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(COALESCE(%s, 0)) AS value
FROM %s
WHERE %s
  AND event_type = 'booking_status_changed'
  AND to_status = 'completed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topOwnersSQL = `
SELECT owner_id AS label, SUM(COALESCE(total_price_cents, 0) - COALESCE(commission_cents, 0)) AS value
FROM %s
WHERE %s
  AND owner_id IS NOT NULL
  AND event_type = 'booking_status_changed'
  AND to_status = 'completed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY owner_id
ORDER BY value DESC
LIMIT 5
`

	statusBreakdownSQL = `
SELECT to_status AS label, COUNT(*) AS value
FROM %s
WHERE %s
  AND event_type = 'booking_status_changed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY to_status
ORDER BY value DESC
`

	completionRateSQL = `
SELECT SAFE_DIVIDE(
  COUNTIF(event_type = 'booking_status_changed' AND to_status = 'completed'),
  NULLIF(COUNTIF(event_type = 'booking_created'), 0)
) AS value
FROM %s
WHERE %s
  AND occurred_at BETWEEN @start AND @end
`
)

// Iterator is the subset of *bigquery.RowIterator the service reads.
type Iterator interface {
	Next(dst any) error
}

// Querier runs parameterized SQL.
type Querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (Iterator, error)
}

type clientQuerier struct {
	client *bigquery.Client
}

func (q clientQuerier) Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (Iterator, error) {
	it, err := q.client.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// FromClient adapts the shared BigQuery client.
func FromClient(client *bigquery.Client) Querier {
	return clientQuerier{client: client}
}

// BookingService serves booking KPIs from the booking_events table.
type BookingService interface {
	Query(ctx context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error)
}

type bookingService struct {
	querier  Querier
	tableRef string
}

func NewBookingService(querier Querier, project, dataset, table string) (BookingService, error) {
	if querier == nil {
		return nil, fmt.Errorf("bigquery querier required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &bookingService{
		querier:  querier,
		tableRef: fmt.Sprintf("`%s.%s.%s`", project, dataset, table),
	}, nil
}

func (s *bookingService) Query(ctx context.Context, req types.BookingQueryRequest) (*types.BookingQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	scope := "TRUE"
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
	if req.OwnerID != "" {
		scope = "owner_id = @ownerID"
		params = append(params, cloudbigquery.QueryParameter{Name: "ownerID", Value: req.OwnerID})
	}

	requests, err := s.querySeries(ctx, fmt.Sprintf(requestsSeriesSQL, s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}
	volume, err := s.querySeries(ctx, fmt.Sprintf(completedSeriesSQL, "total_price_cents", s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}
	commission, err := s.querySeries(ctx, fmt.Sprintf(completedSeriesSQL, "commission_cents", s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}
	topOwners, err := s.queryLabels(ctx, fmt.Sprintf(topOwnersSQL, s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.queryLabels(ctx, fmt.Sprintf(statusBreakdownSQL, s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}
	rate, err := s.queryRate(ctx, fmt.Sprintf(completionRateSQL, s.tableRef, scope), params)
	if err != nil {
		return nil, err
	}

	return &types.BookingQueryResponse{
		Requests:        requests,
		CompletedVolume: volume,
		Commission:      commission,
		TopOwners:       topOwners,
		StatusBreakdown: breakdown,
		CompletionRate:  rate,
	}, nil
}

func validateRequest(req types.BookingQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func (s *bookingService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	it, err := s.querier.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	points := []types.TimeSeriesPoint{}
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *bookingService) queryLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	it, err := s.querier.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	out := []types.LabelValue{}
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading label row: %w", err)
		}
		out = append(out, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return out, nil
}

func (s *bookingService) queryRate(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (float64, error) {
	it, err := s.querier.Query(ctx, sql, params)
	if err != nil {
		return 0, fmt.Errorf("query completion rate: %w", err)
	}
	var row struct {
		Value cloudbigquery.NullFloat64 `bigquery:"value"`
	}
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading completion rate row: %w", err)
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Float64, nil
}
