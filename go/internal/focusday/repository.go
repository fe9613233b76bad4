package focusday

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/focusd/go/internal/focusday/db"
	"github.com/mcdev12/focusd/go/internal/models"
	"github.com/mcdev12/focusd/go/internal/sqlutil"
)

// ErrDayNotFound is returned when no record exists yet for a (user, day) key.
var ErrDayNotFound = errors.New("focus day not found")

// Repository implements focus day data access operations
type Repository struct {
	database *sql.DB
	queries  *db.Queries
}

// NewRepository creates a new focusday repository
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		database: database,
		queries:  db.New(database),
	}
}

// GetDay retrieves the day record for a (user, day) key.
func (r *Repository) GetDay(ctx context.Context, userID uuid.UUID, day time.Time) (*models.FocusDay, error) {
	row, err := r.queries.GetFocusDay(ctx, db.GetFocusDayParams{
		UserID: userID,
		Day:    day,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDayNotFound
		}
		return nil, fmt.Errorf("failed to get focus day: %w", err)
	}

	return r.dbDayToModel(row), nil
}

// UpsertActiveProgress stores the in-progress session snapshot. It writes only
// active_minutes, session_start_time and last_updated.
func (r *Repository) UpsertActiveProgress(ctx context.Context, userID uuid.UUID, day time.Time, activeMinutes int, sessionStart *time.Time, now time.Time) (*models.FocusDay, error) {
	row, err := r.queries.UpsertActiveProgress(ctx, db.UpsertActiveProgressParams{
		ID:               uuid.New(),
		UserID:           userID,
		Day:              day,
		ActiveMinutes:    int32(activeMinutes),
		SessionStartTime: sqlutil.ToSqlTime(sessionStart),
		LastUpdated:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert active progress: %w", err)
	}

	return r.dbDayToModel(row), nil
}

// CompleteSession claims the session id and, if it is new, folds the finished
// session into the day record. Both steps run in one transaction so a retried
// completion can never increment the day twice. The returned applied flag is
// false when the session id had already been claimed.
func (r *Repository) CompleteSession(ctx context.Context, userID uuid.UUID, day time.Time, sessionID string, focusMinutes, goalMinutes int, now time.Time) (*models.FocusDay, bool, error) {
	var (
		result  db.FocusDay
		applied bool
	)

	err := sqlutil.Run(ctx, r.database, r.queries.WithTx, func(q *db.Queries) error {
		claimed, err := q.InsertSession(ctx, db.InsertSessionParams{
			ID:           sessionID,
			UserID:       userID,
			Day:          day,
			FocusMinutes: int32(focusMinutes),
			CompletedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("failed to claim session: %w", err)
		}

		if claimed == 0 {
			// Duplicate submission: return the current state untouched.
			result, err = q.GetFocusDay(ctx, db.GetFocusDayParams{UserID: userID, Day: day})
			if errors.Is(err, sql.ErrNoRows) {
				// Session was originally committed on an earlier day.
				result = db.FocusDay{UserID: userID, Day: day}
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get focus day for duplicate session: %w", err)
			}
			return nil
		}

		applied = true
		result, err = q.ApplyCompletedSession(ctx, db.ApplyCompletedSessionParams{
			ID:           uuid.New(),
			UserID:       userID,
			Day:          day,
			FocusMinutes: int32(focusMinutes),
			GoalMinutes:  int32(goalMinutes),
			LastUpdated:  now,
		})
		if err != nil {
			return fmt.Errorf("failed to apply completed session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return r.dbDayToModel(result), applied, nil
}

// dbDayToModel converts a database row to the domain model
func (r *Repository) dbDayToModel(row db.FocusDay) *models.FocusDay {
	return &models.FocusDay{
		ID:                row.ID,
		UserID:            row.UserID,
		Day:               row.Day,
		CompletedMinutes:  int(row.CompletedMinutes),
		ActiveMinutes:     int(row.ActiveMinutes),
		SessionStartTime:  sqlutil.FromSqlTime(row.SessionStartTime),
		SessionsCompleted: int(row.SessionsCompleted),
		AchievedGoal:      row.AchievedGoal,
		LastUpdated:       row.LastUpdated,
	}
}
