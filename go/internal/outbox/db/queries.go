package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type FocusEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

const insertEvent = `
INSERT INTO focus_outbox (id, user_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type InsertEventParams struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) error {
	_, err := q.db.ExecContext(ctx, insertEvent,
		arg.ID,
		arg.UserID,
		arg.EventType,
		arg.Payload,
		arg.CreatedAt,
	)
	return err
}

// fetchUnsent locks claimed rows so concurrent workers never publish the same
// event twice.
const fetchUnsent = `
SELECT id, user_id, event_type, payload, created_at
FROM focus_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) FetchUnsent(ctx context.Context, limit int32) ([]FocusEvent, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FocusEvent
	for rows.Next() {
		var i FocusEvent
		if err := rows.Scan(&i.ID, &i.UserID, &i.EventType, &i.Payload, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markSent = `
UPDATE focus_outbox SET sent_at = NOW() WHERE id = ANY($1)
`

func (q *Queries) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markSent, pq.Array(ids))
	return err
}

const countPending = `
SELECT COUNT(*) FROM focus_outbox WHERE sent_at IS NULL
`

func (q *Queries) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPending).Scan(&n)
	return n, err
}
