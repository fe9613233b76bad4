package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const getFocusDay = `
SELECT id, user_id, day, completed_minutes, active_minutes, session_start_time,
       sessions_completed, achieved_goal, last_updated
FROM focus_days
WHERE user_id = $1 AND day = $2
`

type GetFocusDayParams struct {
	UserID uuid.UUID
	Day    time.Time
}

func (q *Queries) GetFocusDay(ctx context.Context, arg GetFocusDayParams) (FocusDay, error) {
	row := q.db.QueryRowContext(ctx, getFocusDay, arg.UserID, arg.Day)
	var i FocusDay
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Day,
		&i.CompletedMinutes,
		&i.ActiveMinutes,
		&i.SessionStartTime,
		&i.SessionsCompleted,
		&i.AchievedGoal,
		&i.LastUpdated,
	)
	return i, err
}

// upsertActiveProgress intentionally never writes completed_minutes. Auto-save
// must not be able to clobber the committed total.
const upsertActiveProgress = `
INSERT INTO focus_days (id, user_id, day, active_minutes, session_start_time, last_updated)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, day) DO UPDATE SET
    active_minutes     = EXCLUDED.active_minutes,
    session_start_time = EXCLUDED.session_start_time,
    last_updated       = EXCLUDED.last_updated
RETURNING id, user_id, day, completed_minutes, active_minutes, session_start_time,
          sessions_completed, achieved_goal, last_updated
`

type UpsertActiveProgressParams struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Day              time.Time
	ActiveMinutes    int32
	SessionStartTime sql.NullTime
	LastUpdated      time.Time
}

func (q *Queries) UpsertActiveProgress(ctx context.Context, arg UpsertActiveProgressParams) (FocusDay, error) {
	row := q.db.QueryRowContext(ctx, upsertActiveProgress,
		arg.ID,
		arg.UserID,
		arg.Day,
		arg.ActiveMinutes,
		arg.SessionStartTime,
		arg.LastUpdated,
	)
	var i FocusDay
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Day,
		&i.CompletedMinutes,
		&i.ActiveMinutes,
		&i.SessionStartTime,
		&i.SessionsCompleted,
		&i.AchievedGoal,
		&i.LastUpdated,
	)
	return i, err
}

// applyCompletedSession folds a finished session into the day record. The
// increments happen in SQL so two devices completing near-simultaneously can
// never lose an update to a stale read.
const applyCompletedSession = `
INSERT INTO focus_days (id, user_id, day, completed_minutes, active_minutes,
                        session_start_time, sessions_completed, achieved_goal, last_updated)
VALUES ($1, $2, $3, $4, 0, NULL, 1, $4 >= $5, $6)
ON CONFLICT (user_id, day) DO UPDATE SET
    completed_minutes  = focus_days.completed_minutes + EXCLUDED.completed_minutes,
    active_minutes     = 0,
    session_start_time = NULL,
    sessions_completed = focus_days.sessions_completed + 1,
    achieved_goal      = focus_days.completed_minutes + EXCLUDED.completed_minutes >= $5,
    last_updated       = EXCLUDED.last_updated
RETURNING id, user_id, day, completed_minutes, active_minutes, session_start_time,
          sessions_completed, achieved_goal, last_updated
`

type ApplyCompletedSessionParams struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Day          time.Time
	FocusMinutes int32
	GoalMinutes  int32
	LastUpdated  time.Time
}

func (q *Queries) ApplyCompletedSession(ctx context.Context, arg ApplyCompletedSessionParams) (FocusDay, error) {
	row := q.db.QueryRowContext(ctx, applyCompletedSession,
		arg.ID,
		arg.UserID,
		arg.Day,
		arg.FocusMinutes,
		arg.GoalMinutes,
		arg.LastUpdated,
	)
	var i FocusDay
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Day,
		&i.CompletedMinutes,
		&i.ActiveMinutes,
		&i.SessionStartTime,
		&i.SessionsCompleted,
		&i.AchievedGoal,
		&i.LastUpdated,
	)
	return i, err
}

// insertSession claims the session id. A duplicate id affects zero rows, which
// is how a retried completion is detected.
const insertSession = `
INSERT INTO focus_sessions (id, user_id, day, focus_minutes, completed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`

type InsertSessionParams struct {
	ID           string
	UserID       uuid.UUID
	Day          time.Time
	FocusMinutes int32
	CompletedAt  time.Time
}

func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertSession,
		arg.ID,
		arg.UserID,
		arg.Day,
		arg.FocusMinutes,
		arg.CompletedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
