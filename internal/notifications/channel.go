package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// Message is one rendered notification for one recipient.
type Message struct {
	EventID     uuid.UUID
	RecipientID uuid.UUID
	BookingID   *uuid.UUID
	Type        enums.NotificationType
	Title       string
	Body        string
	Link        string
	CreatedAt   time.Time
}

// Channel delivers messages. Deliver must be safe to repeat for the same
// (EventID, RecipientID).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// InAppChannel stores messages in the notifications table.
type InAppChannel struct {
	repo Repository
}

func NewInAppChannel(repo Repository) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Deliver(ctx context.Context, msg Message) error {
	notification := &models.Notification{
		ID:          uuid.New(),
		RecipientID: msg.RecipientID,
		EventID:     msg.EventID,
		BookingID:   msg.BookingID,
		Type:        msg.Type,
		Title:       msg.Title,
		Message:     msg.Body,
		CreatedAt:   msg.CreatedAt,
	}
	if msg.Link != "" {
		link := msg.Link
		notification.Link = &link
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	_, err := c.repo.Create(ctx, notification)
	return err
}
