package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type names carried on the wire; the gateway switches on these.
const (
	EventTypeProgressSaved    = "ProgressSaved"
	EventTypeSessionCompleted = "SessionCompleted"
	EventTypePointsAwarded    = "PointsAwarded"
)

// OutboxEvent represents an outbox event for the application layer
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
