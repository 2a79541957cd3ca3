package router

import (
	"context"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/gearshare-backend/internal/analytics/writer"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
)

type bookingHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newBookingHandler(writer Writer, logg *logger.Logger) Handler {
	return &bookingHandler{writer: writer, logg: logg}
}

func (h *bookingHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.BookingEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"booking_id": event.BookingID.String(),
		"to_status":  string(event.ToStatus),
	})

	row, err := buildBookingRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "analytics.booking.row_failed", err)
		return err
	}
	if err := h.writer.Insert(logCtx, row); err != nil {
		h.logg.Error(logCtx, "analytics.booking.insert_failed", err)
		return err
	}
	h.logg.Debug(logCtx, "analytics.booking.inserted")
	return nil
}

func buildBookingRow(envelope types.Envelope, event *payloads.BookingEvent) (types.EventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.EventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	start, err := nullDate(event.StartDate)
	if err != nil {
		return types.EventRow{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := nullDate(event.EndDate)
	if err != nil {
		return types.EventRow{}, fmt.Errorf("end_date: %w", err)
	}

	return types.EventRow{
		EventID:         envelope.EventID,
		EventType:       string(envelope.EventType),
		OccurredAt:      occurredAt(event.OccurredAt, envelope.OccurredAt),
		BookingID:       stringPtr(event.BookingID.String()),
		EquipmentID:     stringPtr(event.EquipmentID.String()),
		RenterID:        stringPtr(event.RenterID.String()),
		OwnerID:         stringPtr(event.OwnerID.String()),
		FromStatus:      stringPtr(string(event.FromStatus)),
		ToStatus:        stringPtr(string(event.ToStatus)),
		ActorRole:       stringPtr(string(event.ActorRole)),
		TotalPriceCents: int64Ptr(event.TotalPriceCents),
		CommissionCents: int64Ptr(event.CommissionCents),
		StartDate:       start,
		EndDate:         end,
		Payload:         payloadJSON,
	}, nil
}

func nullDate(value string) (cbigquery.NullDate, error) {
	if value == "" {
		return cbigquery.NullDate{}, nil
	}
	date, err := civil.ParseDate(value)
	if err != nil {
		return cbigquery.NullDate{}, err
	}
	return cbigquery.NullDate{Date: date, Valid: true}, nil
}

func occurredAt(primary, fallback time.Time) time.Time {
	if primary.IsZero() {
		return fallback.UTC()
	}
	return primary.UTC()
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
