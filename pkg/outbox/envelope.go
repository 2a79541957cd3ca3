package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	ID   uuid.UUID       `json:"id"`
	Role enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is the stable structure stored in outbox_events.payload and
// published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
