package events

import (
	"time"
)

// Event payload types that are shared between the focusday/outbox and gateway packages

// ProgressSavedPayload is the payload for a ProgressSaved event
type ProgressSavedPayload struct {
	UserID           string     `json:"user_id"`
	Day              time.Time  `json:"day"`
	CompletedMinutes int        `json:"completed_minutes"`
	ActiveMinutes    int        `json:"active_minutes"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
	SavedAt          time.Time  `json:"saved_at"`
}

// SessionCompletedPayload is the payload for a SessionCompleted event
type SessionCompletedPayload struct {
	UserID            string    `json:"user_id"`
	SessionID         string    `json:"session_id"`
	Day               time.Time `json:"day"`
	FocusMinutes      int       `json:"focus_minutes"`
	CompletedMinutes  int       `json:"completed_minutes"`
	SessionsCompleted int       `json:"sessions_completed"`
	PointsAwarded     int       `json:"points_awarded"`
	AchievedGoal      bool      `json:"achieved_goal"`
	CompletedAt       time.Time `json:"completed_at"`
}

// PointsAwardedPayload is the payload for a PointsAwarded event
type PointsAwardedPayload struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Delta         int       `json:"delta"`
	NewBalance    int       `json:"new_balance"`
	AwardedAt     time.Time `json:"awarded_at"`
}
