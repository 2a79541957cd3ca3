package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// EventRow mirrors the booking_events BigQuery schema. Booking columns are
// null for wallet rows and the account columns are null for booking rows.
type EventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	BookingID       *string            `bigquery:"booking_id"`
	EquipmentID     *string            `bigquery:"equipment_id"`
	RenterID        *string            `bigquery:"renter_id"`
	OwnerID         *string            `bigquery:"owner_id"`
	FromStatus      *string            `bigquery:"from_status"`
	ToStatus        *string            `bigquery:"to_status"`
	ActorRole       *string            `bigquery:"actor_role"`
	TotalPriceCents *int64             `bigquery:"total_price_cents"`
	CommissionCents *int64             `bigquery:"commission_cents"`
	StartDate       cbigquery.NullDate `bigquery:"start_date"`
	EndDate         cbigquery.NullDate `bigquery:"end_date"`
	AccountID       *string            `bigquery:"account_id"`
	AmountCents     *int64             `bigquery:"amount_cents"`
	PaymentStatus   *string            `bigquery:"payment_status"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
