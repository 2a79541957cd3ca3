package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// BookingEvent describes a booking creation (FromStatus empty) or a status
// transition. It is both the outbox payload and the in-process notification.
type BookingEvent struct {
	EventID         uuid.UUID           `json:"event_id"`
	BookingID       uuid.UUID           `json:"booking_id"`
	EquipmentID     uuid.UUID           `json:"equipment_id"`
	RenterID        uuid.UUID           `json:"renter_id"`
	OwnerID         uuid.UUID           `json:"owner_id"`
	FromStatus      enums.BookingStatus `json:"from_status,omitempty"`
	ToStatus        enums.BookingStatus `json:"to_status"`
	ActorID         uuid.UUID           `json:"actor_id"`
	ActorRole       enums.ActorRole     `json:"actor_role"`
	TotalPriceCents int64               `json:"total_price_cents"`
	CommissionCents int64               `json:"commission_cents"`
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// WalletPaymentRecordedEvent is emitted when a payment outcome lands in the ledger.
type WalletPaymentRecordedEvent struct {
	EventID     uuid.UUID               `json:"event_id"`
	EntryID     uuid.UUID               `json:"entry_id"`
	AccountID   uuid.UUID               `json:"account_id"`
	AmountCents int64                   `json:"amount_cents"`
	Status      enums.LedgerEntryStatus `json:"status"`
	Reference   string                  `json:"reference,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
}
