package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// Notification is an in-app message addressed to one account. EventID ties it
// to the domain event that produced it so redelivery cannot duplicate it.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;uniqueIndex:uq_notifications_event_recipient,priority:2;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	EventID     uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex:uq_notifications_event_recipient,priority:1" json:"event_id"`
	BookingID   *uuid.UUID             `gorm:"column:booking_id;type:uuid" json:"booking_id,omitempty"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Title       string                 `gorm:"column:title;not null" json:"title"`
	Message     string                 `gorm:"column:message;not null" json:"message"`
	Link        *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt      *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;not null;index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}
