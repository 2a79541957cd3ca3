package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/metrics"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
)

const (
	defaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

type DispatcherParams struct {
	Channels  []Channel
	Logger    *logger.Logger
	Metrics   *metrics.NotificationMetrics
	QueueSize int
	Workers   int
}

// Dispatcher fans booking events out to the parties that did not cause them.
// Notify never blocks; Run drains the queue with a fixed worker pool.
type Dispatcher struct {
	channels []Channel
	logg     *logger.Logger
	metrics  *metrics.NotificationMetrics
	queue    chan payloads.BookingEvent
	workers  int
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if len(params.Channels) == 0 {
		return nil, fmt.Errorf("at least one notification channel required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	workers := params.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		channels: params.Channels,
		logg:     params.Logger,
		metrics:  params.Metrics,
		queue:    make(chan payloads.BookingEvent, size),
		workers:  workers,
	}, nil
}

// Notify enqueues event for asynchronous delivery. A full queue drops the
// event; the outbox copy still reaches the Pub/Sub consumer.
func (d *Dispatcher) Notify(ctx context.Context, event payloads.BookingEvent) {
	select {
	case d.queue <- event:
	default:
		d.metrics.IncDropped()
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_id":   event.EventID.String(),
			"booking_id": event.BookingID.String(),
		})
		d.logg.Warn(logCtx, "notification.queue.full")
	}
}

// Run processes queued events until ctx is cancelled, then delivers whatever
// is still queued within a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.deliverLogged(drainCtx, event)
		default:
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliverLogged(ctx, event)
		}
	}
}

func (d *Dispatcher) deliverLogged(ctx context.Context, event payloads.BookingEvent) {
	if err := d.Dispatch(ctx, event); err != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_id":   event.EventID.String(),
			"booking_id": event.BookingID.String(),
		})
		d.logg.Error(logCtx, "notification.dispatch.failed", err)
	}
}

// Dispatch renders and delivers event synchronously to every recipient on
// every channel, returning the combined delivery errors.
func (d *Dispatcher) Dispatch(ctx context.Context, event payloads.BookingEvent) error {
	bookingID := event.BookingID
	var errs error
	for _, recipient := range Recipients(event) {
		body := render(event, recipient.Role)
		msg := Message{
			EventID:     event.EventID,
			RecipientID: recipient.ID,
			BookingID:   &bookingID,
			Type:        body.kind,
			Title:       body.title,
			Body:        body.body,
			Link:        fmt.Sprintf("/bookings/%s", event.BookingID),
			CreatedAt:   event.OccurredAt,
		}
		errs = multierr.Append(errs, d.deliver(ctx, msg))
	}
	return errs
}

// DispatchPayment tells an account holder about a recorded payment outcome.
func (d *Dispatcher) DispatchPayment(ctx context.Context, event payloads.WalletPaymentRecordedEvent) error {
	body := renderPayment(event)
	return d.deliver(ctx, Message{
		EventID:     event.EventID,
		RecipientID: event.AccountID,
		Type:        body.kind,
		Title:       body.title,
		Body:        body.body,
		Link:        "/wallet",
		CreatedAt:   event.OccurredAt,
	})
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	var errs error
	for _, channel := range d.channels {
		err := channel.Deliver(ctx, msg)
		d.metrics.ObserveDelivery(channel.Name(), err)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s delivery to %s: %w", channel.Name(), msg.RecipientID, err))
		}
	}
	return errs
}

// Recipient is one party to notify and the role it plays on the booking.
type Recipient struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// Recipients picks the counterparty of the actor, or both parties when the
// platform acted.
func Recipients(event payloads.BookingEvent) []Recipient {
	owner := Recipient{ID: event.OwnerID, Role: enums.ActorRoleOwner}
	renter := Recipient{ID: event.RenterID, Role: enums.ActorRoleRenter}
	switch event.ActorRole {
	case enums.ActorRoleOwner:
		return []Recipient{renter}
	case enums.ActorRoleRenter:
		return []Recipient{owner}
	default:
		return []Recipient{owner, renter}
	}
}
