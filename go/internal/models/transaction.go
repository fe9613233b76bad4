package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType defines what kind of event a point transaction records.
type TransactionType string

const (
	TransactionSessionCompleted TransactionType = "SESSION_COMPLETED"
	TransactionTaskCompleted    TransactionType = "TASK_COMPLETED"
	TransactionTaskUncompleted  TransactionType = "TASK_UNCOMPLETED"
	TransactionStreakBonus      TransactionType = "STREAK_BONUS"
	TransactionAdminAdjustment  TransactionType = "ADMIN_ADJUSTMENT"
)

// PointTransaction is one immutable row of the reward ledger.
//
// At most one transaction may exist for a given (user, type, related entity)
// tuple for the exactly-once types; see the ledger package for the task
// re-award rules.
type PointTransaction struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Delta           int             `json:"delta"`
	Type            TransactionType `json:"type"`
	Reason          string          `json:"reason"`
	RelatedEntityID string          `json:"related_entity_id"`
	PreviousBalance int             `json:"previous_balance"`
	NewBalance      int             `json:"new_balance"`
	AwardedAt       time.Time       `json:"awarded_at"`
}

// PointsSummary is the derived level/XP view. Level and the next-level
// threshold are pure functions of XP and are recomputed on every read.
type PointsSummary struct {
	XP             int `json:"xp"`
	Level          int `json:"level"`
	XPForNextLevel int `json:"xp_for_next_level"`
}
