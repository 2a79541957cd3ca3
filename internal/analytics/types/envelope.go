package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// Envelope is the analytics view of a published outbox event.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
