package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type FocusDay struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Day               time.Time
	CompletedMinutes  int32
	ActiveMinutes     int32
	SessionStartTime  sql.NullTime
	SessionsCompleted int32
	AchievedGoal      bool
	LastUpdated       time.Time
}

type FocusSession struct {
	ID           string
	UserID       uuid.UUID
	Day          time.Time
	FocusMinutes int32
	CompletedAt  time.Time
}
