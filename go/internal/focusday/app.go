package focusday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusd/go/internal/events"
	"github.com/mcdev12/focusd/go/internal/models"
)

// ErrInvalidInput marks requests the service rejects without mutating state.
var ErrInvalidInput = errors.New("invalid input")

// FocusDayRepository defines what the app layer needs from the repository
type FocusDayRepository interface {
	GetDay(ctx context.Context, userID uuid.UUID, day time.Time) (*models.FocusDay, error)
	UpsertActiveProgress(ctx context.Context, userID uuid.UUID, day time.Time, activeMinutes int, sessionStart *time.Time, now time.Time) (*models.FocusDay, error)
	CompleteSession(ctx context.Context, userID uuid.UUID, day time.Time, sessionID string, focusMinutes, goalMinutes int, now time.Time) (*models.FocusDay, bool, error)
}

// LedgerApp defines what the app layer needs from the reward ledger
type LedgerApp interface {
	AwardSessionCompletion(ctx context.Context, userID uuid.UUID, sessionID string, focusMinutes int) (int, bool, error)
	AwardStreakBonus(ctx context.Context, userID uuid.UUID, day time.Time, sessionsCompleted int) (int, bool, error)
}

// OutboxApp defines what the app layer needs from the event outbox
type OutboxApp interface {
	InsertProgressSaved(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertSessionCompleted(ctx context.Context, userID uuid.UUID, payload []byte) error
}

// App handles focus day business logic: day-boundary normalization, the
// single-writer rule for completed minutes, and exactly-once session commits.
type App struct {
	repo   FocusDayRepository
	ledger LedgerApp
	outbox OutboxApp
	clock  clockwork.Clock
	cfg    Config
}

// NewApp creates a new focusday App
func NewApp(repo FocusDayRepository, ledger LedgerApp, outbox OutboxApp, clock clockwork.Clock, cfg Config) *App {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &App{
		repo:   repo,
		ledger: ledger,
		outbox: outbox,
		clock:  clock,
		cfg:    cfg,
	}
}

// Today returns the current day boundary in the canonical timezone. Clients
// never compute this themselves; the historical client/server "today"
// mismatch bugs all trace back to letting them.
func (a *App) Today() time.Time {
	now := a.clock.Now().In(a.cfg.Timezone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.cfg.Timezone)
}

// GetTodayProgress returns the authoritative record for the caller's current
// day. A user with no record yet gets a zero-valued day, not an error.
func (a *App) GetTodayProgress(ctx context.Context, userID uuid.UUID) (*TodayProgress, error) {
	day := a.Today()

	record, err := a.repo.GetDay(ctx, userID, day)
	if err != nil {
		if errors.Is(err, ErrDayNotFound) {
			return &TodayProgress{Day: day}, nil
		}
		return nil, fmt.Errorf("failed to get today progress: %w", err)
	}

	return a.dayToProgress(record), nil
}

// SaveActiveProgress upserts the in-progress snapshot for today. It can never
// change completed minutes; that guarantee lives in the repository's SQL and
// is what makes any save cadence safe.
func (a *App) SaveActiveProgress(ctx context.Context, userID uuid.UUID, req SaveActiveProgressRequest) (*SaveActiveProgressResult, error) {
	if req.ActiveMinutes < 0 {
		return nil, fmt.Errorf("%w: active minutes must be non-negative", ErrInvalidInput)
	}
	if req.SessionStartTime.IsZero() {
		return nil, fmt.Errorf("%w: session start time is required", ErrInvalidInput)
	}

	now := a.clock.Now()
	start := req.SessionStartTime
	if start.After(now) {
		// Clock skew: clamp rather than reject, the snapshot is still usable.
		start = now
	}

	record, err := a.repo.UpsertActiveProgress(ctx, userID, a.Today(), req.ActiveMinutes, &start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save active progress: %w", err)
	}

	a.emitProgressSaved(ctx, record)

	return &SaveActiveProgressResult{
		CompletedMinutes: record.CompletedMinutes,
		ActiveMinutes:    record.ActiveMinutes,
	}, nil
}

// CompleteSession commits a finished session exactly once per session id. The
// repository claims the id and folds the minutes atomically; the ledger award
// is idempotent on the same id, so a retry after a partial failure repairs
// whichever half is missing instead of double-applying either.
func (a *App) CompleteSession(ctx context.Context, userID uuid.UUID, req CompleteSessionRequest) (*CompleteSessionResult, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if req.FocusMinutes <= 0 {
		return nil, fmt.Errorf("%w: focus minutes must be positive", ErrInvalidInput)
	}
	if a.cfg.MaxSessionMinutes > 0 && req.FocusMinutes > a.cfg.MaxSessionMinutes {
		return nil, fmt.Errorf("%w: focus minutes exceed the maximum session length", ErrInvalidInput)
	}

	now := a.clock.Now()
	day := a.Today()

	record, applied, err := a.repo.CompleteSession(ctx, userID, day, req.SessionID, req.FocusMinutes, a.cfg.GoalMinutes, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	points, alreadyAwarded, err := a.ledger.AwardSessionCompletion(ctx, userID, req.SessionID, req.FocusMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to award session points: %w", err)
	}
	if alreadyAwarded {
		points = 0
	}

	if applied {
		if bonus := a.awardStreak(ctx, userID, day, record.SessionsCompleted); bonus > 0 {
			points += bonus
		}
		a.emitSessionCompleted(ctx, record, req, points)
		log.Info().
			Str("user_id", userID.String()).
			Str("session_id", req.SessionID).
			Int("focus_minutes", req.FocusMinutes).
			Int("points_awarded", points).
			Msg("session completed")
	}

	return &CompleteSessionResult{
		CompletedMinutes:  record.CompletedMinutes,
		SessionsCompleted: record.SessionsCompleted,
		PointsAwarded:     points,
		AchievedGoal:      record.AchievedGoal,
		AlreadyCompleted:  !applied,
	}, nil
}

// awardStreak hands the ledger a chance at a milestone bonus. Failures are
// logged, not propagated: the session commit already succeeded.
func (a *App) awardStreak(ctx context.Context, userID uuid.UUID, day time.Time, sessionsCompleted int) int {
	bonus, awarded, err := a.ledger.AwardStreakBonus(ctx, userID, day, sessionsCompleted)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to award streak bonus")
		return 0
	}
	if !awarded {
		return 0
	}
	return bonus
}

func (a *App) emitProgressSaved(ctx context.Context, record *models.FocusDay) {
	if a.outbox == nil {
		return
	}
	payload, err := json.Marshal(events.ProgressSavedPayload{
		UserID:           record.UserID.String(),
		Day:              record.Day,
		CompletedMinutes: record.CompletedMinutes,
		ActiveMinutes:    record.ActiveMinutes,
		SessionStartTime: record.SessionStartTime,
		SavedAt:          record.LastUpdated,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal ProgressSaved payload")
		return
	}
	if err := a.outbox.InsertProgressSaved(ctx, record.UserID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", record.UserID.String()).Msg("failed to enqueue ProgressSaved event")
	}
}

func (a *App) emitSessionCompleted(ctx context.Context, record *models.FocusDay, req CompleteSessionRequest, points int) {
	if a.outbox == nil {
		return
	}
	payload, err := json.Marshal(events.SessionCompletedPayload{
		UserID:            record.UserID.String(),
		SessionID:         req.SessionID,
		Day:               record.Day,
		FocusMinutes:      req.FocusMinutes,
		CompletedMinutes:  record.CompletedMinutes,
		SessionsCompleted: record.SessionsCompleted,
		PointsAwarded:     points,
		AchievedGoal:      record.AchievedGoal,
		CompletedAt:       record.LastUpdated,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal SessionCompleted payload")
		return
	}
	if err := a.outbox.InsertSessionCompleted(ctx, record.UserID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", record.UserID.String()).Msg("failed to enqueue SessionCompleted event")
	}
}

func (a *App) dayToProgress(record *models.FocusDay) *TodayProgress {
	return &TodayProgress{
		Day:               record.Day,
		CompletedMinutes:  record.CompletedMinutes,
		ActiveMinutes:     record.ActiveMinutes,
		SessionStartTime:  record.SessionStartTime,
		SessionsCompleted: record.SessionsCompleted,
		AchievedGoal:      record.AchievedGoal,
		LastUpdated:       record.LastUpdated,
	}
}
