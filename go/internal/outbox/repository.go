package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/focusd/go/internal/outbox/db"
)

// Repository appends focus events for later publication.
type Repository struct {
	queries *db.Queries
	clock   clockwork.Clock
}

func NewRepository(queries *db.Queries, clock clockwork.Clock) *Repository {
	return &Repository{
		queries: queries,
		clock:   clock,
	}
}

func (r *Repository) InsertProgressSaved(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return r.insert(ctx, userID, EventTypeProgressSaved, payload)
}

func (r *Repository) InsertSessionCompleted(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return r.insert(ctx, userID, EventTypeSessionCompleted, payload)
}

func (r *Repository) InsertPointsAwarded(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return r.insert(ctx, userID, EventTypePointsAwarded, payload)
}

func (r *Repository) insert(ctx context.Context, userID uuid.UUID, eventType string, payload []byte) error {
	err := r.queries.InsertEvent(ctx, db.InsertEventParams{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: eventType,
		Payload:   json.RawMessage(payload),
		CreatedAt: r.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}
