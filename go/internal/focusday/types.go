package focusday

import (
	"time"
)

// TodayProgress is the authoritative view a client surface fetches before
// feeding progress.Calculate.
type TodayProgress struct {
	Day               time.Time  `json:"day"`
	CompletedMinutes  int        `json:"completed_minutes"`
	ActiveMinutes     int        `json:"active_minutes"`
	SessionStartTime  *time.Time `json:"session_start_time,omitempty"`
	SessionsCompleted int        `json:"sessions_completed"`
	AchievedGoal      bool       `json:"achieved_goal"`
	LastUpdated       time.Time  `json:"last_updated"`
}

// SaveActiveProgressRequest snapshots the in-progress session. It carries no
// completed total on purpose: a save can never assert one.
type SaveActiveProgressRequest struct {
	ActiveMinutes    int       `json:"active_minutes"`
	SessionStartTime time.Time `json:"session_start_time"`
}

// SaveActiveProgressResult echoes the stored state back to the caller.
type SaveActiveProgressResult struct {
	CompletedMinutes int `json:"completed_minutes"`
	ActiveMinutes    int `json:"active_minutes"`
}

// CompleteSessionRequest commits a finished session. SessionID is the
// idempotency key; retries with the same id are no-ops.
type CompleteSessionRequest struct {
	FocusMinutes int    `json:"focus_minutes"`
	SessionID    string `json:"session_id"`
}

// CompleteSessionResult reports the day state after the commit.
// AlreadyCompleted is true when the session id had been submitted before; in
// that case PointsAwarded is zero and nothing was mutated.
type CompleteSessionResult struct {
	CompletedMinutes  int  `json:"completed_minutes"`
	SessionsCompleted int  `json:"sessions_completed"`
	PointsAwarded     int  `json:"points_awarded"`
	AchievedGoal      bool `json:"achieved_goal"`
	AlreadyCompleted  bool `json:"already_completed"`
}

// Config holds the engine tunables for the day service.
type Config struct {
	GoalMinutes       int
	MaxSessionMinutes int            // upper bound on a single commit, rejects nonsense input
	Timezone          *time.Location // canonical day boundary, applied server-side only
}

// DefaultConfig returns the product defaults: a two hour daily goal and UTC
// day boundaries.
func DefaultConfig() Config {
	return Config{
		GoalMinutes:       120,
		MaxSessionMinutes: 240,
		Timezone:          time.UTC,
	}
}
