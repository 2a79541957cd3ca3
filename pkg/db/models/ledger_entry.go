package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// LedgerEntry is one immutable money movement on an account. AmountCents is
// the unsigned magnitude; Kind decides the balance direction.
type LedgerEntry struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID   uuid.UUID               `gorm:"column:account_id;type:uuid;not null;index:idx_ledger_entries_account_created,priority:1" json:"account_id"`
	BookingID   *uuid.UUID              `gorm:"column:booking_id;type:uuid;index:idx_ledger_entries_booking" json:"booking_id,omitempty"`
	Kind        enums.LedgerEntryKind   `gorm:"column:kind;type:ledger_entry_kind;not null" json:"kind"`
	Status      enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null" json:"status"`
	AmountCents int64                   `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Reference   *string                 `gorm:"column:reference" json:"reference,omitempty"`
	CreatedAt   time.Time               `gorm:"column:created_at;not null;index:idx_ledger_entries_account_created,priority:2" json:"created_at"`
}

// SignedAmount is the entry's effect on its account balance.
func (e LedgerEntry) SignedAmount() int64 {
	if !e.Status.CountsTowardBalance() {
		return 0
	}
	return e.Kind.Sign() * e.AmountCents
}
