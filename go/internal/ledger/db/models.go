package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type PointTransaction struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Delta           int32
	Type            string
	Reason          string
	RelatedEntityID string
	PreviousBalance int32
	NewBalance      int32
	Metadata        pqtype.NullRawMessage
	AwardedAt       time.Time
}
