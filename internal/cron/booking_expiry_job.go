package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

const defaultExpiryBatch = 100

type bookingExpirer interface {
	ExpirePending(ctx context.Context, limit int) (int, error)
}

type BookingExpiryJobParams struct {
	Logger    *logger.Logger
	Bookings  bookingExpirer
	BatchSize int
}

func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &bookingExpiryJob{logg: params.Logger, bookings: params.Bookings, batch: batch}, nil
}

// bookingExpiryJob cancels pending requests whose start date has passed,
// refunding the held funds through the normal cancel transition.
type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings bookingExpirer
	batch    int
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

func (j *bookingExpiryJob) Run(ctx context.Context) error {
	expired, err := j.bookings.ExpirePending(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":    expired,
		"batch_size": j.batch,
	})
	if err != nil {
		return fmt.Errorf("booking expiry: %w", err)
	}
	j.logg.Info(logCtx, "cron.booking_expiry.done")
	return nil
}
