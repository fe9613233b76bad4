package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerMode defines which interval a client timer is counting down.
type TimerMode string

const (
	TimerModeFocus TimerMode = "FOCUS"
	TimerModeBreak TimerMode = "BREAK"
)

// FocusDay is the authoritative per-user-per-day focus record.
//
// CompletedMinutes only ever grows within a day and only through session
// completion or an explicit commit-on-pause. ActiveMinutes is a snapshot of the
// in-progress session as of the last save and is overwritten by every save.
type FocusDay struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Day               time.Time  `json:"day"` // midnight in the canonical timezone
	CompletedMinutes  int        `json:"completed_minutes"`
	ActiveMinutes     int        `json:"active_minutes"`
	SessionStartTime  *time.Time `json:"session_start_time,omitempty"` // nil when no session is active
	SessionsCompleted int        `json:"sessions_completed"`
	AchievedGoal      bool       `json:"achieved_goal"`
	LastUpdated       time.Time  `json:"last_updated"`
}

// TotalMinutes is derived, never stored. Callers that need the user-facing
// total must go through progress.Calculate so every surface agrees.
func (d *FocusDay) TotalMinutes() int {
	return d.CompletedMinutes + d.ActiveMinutes
}

// FocusSession records one completed focus session. The session ID doubles as
// the idempotency key for CompleteSession retries.
type FocusSession struct {
	ID           string    `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Day          time.Time `json:"day"`
	FocusMinutes int       `json:"focus_minutes"`
	CompletedAt  time.Time `json:"completed_at"`
}
