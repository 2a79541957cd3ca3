package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// Booking is a rental agreement between one renter and one owner for one
// piece of equipment over an inclusive calendar date range.
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EquipmentID     uuid.UUID           `gorm:"column:equipment_id;type:uuid;not null" json:"equipment_id"`
	OwnerID         uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index:idx_bookings_owner_created,priority:1" json:"owner_id"`
	RenterID        uuid.UUID           `gorm:"column:renter_id;type:uuid;not null;index:idx_bookings_renter_created,priority:1" json:"renter_id"`
	StartDate       time.Time           `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate         time.Time           `gorm:"column:end_date;type:date;not null" json:"end_date"`
	TotalPriceCents int64               `gorm:"column:total_price_cents;not null" json:"total_price_cents"`
	CommissionCents int64               `gorm:"column:commission_cents;not null;default:0" json:"commission_cents"`
	Status          enums.BookingStatus `gorm:"column:status;type:booking_status;not null;index:idx_bookings_status" json:"status"`
	RentalStartedAt *time.Time          `gorm:"column:rental_started_at" json:"rental_started_at,omitempty"`
	CompletedAt     *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;not null;index:idx_bookings_owner_created,priority:2;index:idx_bookings_renter_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TimestampsConsistent reports whether the nullable lifecycle timestamps agree with Status.
func (b Booking) TimestampsConsistent() bool {
	if (b.CompletedAt != nil) != (b.Status == enums.BookingStatusCompleted) {
		return false
	}
	return (b.RentalStartedAt != nil) == b.Status.HasStarted()
}
