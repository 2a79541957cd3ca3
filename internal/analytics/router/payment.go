package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gearshare-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/gearshare-backend/internal/analytics/writer"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
)

type paymentHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPaymentHandler(writer Writer, logg *logger.Logger) Handler {
	return &paymentHandler{writer: writer, logg: logg}
}

func (h *paymentHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.WalletPaymentRecordedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"account_id": event.AccountID.String(),
	})

	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		h.logg.Error(logCtx, "analytics.payment.row_failed", err)
		return err
	}
	row := types.EventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurredAt(event.OccurredAt, envelope.OccurredAt),
		AccountID:     stringPtr(event.AccountID.String()),
		AmountCents:   int64Ptr(event.AmountCents),
		PaymentStatus: stringPtr(string(event.Status)),
		Payload:       payloadJSON,
	}
	if err := h.writer.Insert(logCtx, row); err != nil {
		h.logg.Error(logCtx, "analytics.payment.insert_failed", err)
		return err
	}
	return nil
}
