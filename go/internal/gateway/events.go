package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/focusd/go/internal/events"
)

// FocusEvent represents the base structure for all focus events
type FocusEvent struct {
	ID        string          `json:"id"`        // Event UUID
	UserID    string          `json:"user_id"`   // User UUID
	Type      EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"payload"`   // Event-specific payload
}

// EventType represents the type of focus event
type EventType string

const (
	EventTypeProgressSaved    EventType = "ProgressSaved"
	EventTypeSessionCompleted EventType = "SessionCompleted"
	EventTypePointsAwarded    EventType = "PointsAwarded"
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *FocusEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeProgressSaved:
		var payload events.ProgressSavedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSessionCompleted:
		var payload events.SessionCompletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePointsAwarded:
		var payload events.PointsAwardedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
