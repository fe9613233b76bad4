package ledger

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

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// PointsOutbox enqueues PointsAwarded events for the gateway fan-out. Nil is
// fine for callers that do not broadcast.
type PointsOutbox interface {
	InsertPointsAwarded(ctx context.Context, userID uuid.UUID, payload []byte) error
}

// LedgerRepository defines what the app layer needs from the repository
type LedgerRepository interface {
	Award(ctx context.Context, req AwardRequest) (*models.PointTransaction, error)
	GetTransactionByKey(ctx context.Context, userID uuid.UUID, txType models.TransactionType, relatedEntityID string) (*models.PointTransaction, error)
	GetLatestTaskTransaction(ctx context.Context, userID uuid.UUID, relatedEntityID string) (*models.PointTransaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error)
}

// App handles reward ledger business logic: delta computation, idempotency,
// and the anti-gaming cooldown rules.
type App struct {
	repo   LedgerRepository
	rules  Rules
	clock  clockwork.Clock
	outbox PointsOutbox
}

// NewApp creates a new ledger App
func NewApp(repo LedgerRepository, rules Rules, clock clockwork.Clock, outbox PointsOutbox) *App {
	return &App{
		repo:   repo,
		rules:  rules,
		clock:  clock,
		outbox: outbox,
	}
}

// AwardSessionCompletion credits a completed focus session exactly once per
// session id. The returned bool reports whether the id had already been
// credited; in that case the prior delta is returned untouched.
func (a *App) AwardSessionCompletion(ctx context.Context, userID uuid.UUID, sessionID string, focusMinutes int) (int, bool, error) {
	existing, err := a.repo.GetTransactionByKey(ctx, userID, models.TransactionSessionCompleted, sessionID)
	if err == nil {
		return existing.Delta, true, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return 0, false, fmt.Errorf("failed to check session award: %w", err)
	}

	// Sessions below the minimum duration earn nothing, but still get a zero
	// delta row so a retried completion reads as already-credited.
	delta := 0
	if focusMinutes >= a.rules.MinSessionMinutes {
		delta = focusMinutes * a.rules.PointsPerMinute
	}

	tx, err := a.repo.Award(ctx, AwardRequest{
		UserID:          userID,
		Delta:           delta,
		Type:            models.TransactionSessionCompleted,
		Reason:          fmt.Sprintf("completed %d minute focus session", focusMinutes),
		RelatedEntityID: sessionID,
		AwardedAt:       a.clock.Now(),
	})
	if errors.Is(err, ErrDuplicateAward) {
		// Lost a race with a concurrent retry; the other writer's row stands.
		return delta, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to award session completion: %w", err)
	}

	return tx.Delta, false, nil
}

// AwardStreakBonus credits a milestone bonus when the day's completed session
// count lands exactly on a configured interval. Idempotent per milestone.
func (a *App) AwardStreakBonus(ctx context.Context, userID uuid.UUID, day time.Time, sessionsCompleted int) (int, bool, error) {
	if a.rules.StreakInterval <= 0 || sessionsCompleted <= 0 || sessionsCompleted%a.rules.StreakInterval != 0 {
		return 0, false, nil
	}

	milestone := fmt.Sprintf("streak:%s:%d", day.Format("2006-01-02"), sessionsCompleted)

	if _, err := a.repo.GetTransactionByKey(ctx, userID, models.TransactionStreakBonus, milestone); err == nil {
		return 0, false, nil
	} else if !errors.Is(err, ErrTransactionNotFound) {
		return 0, false, fmt.Errorf("failed to check streak bonus: %w", err)
	}

	tx, err := a.repo.Award(ctx, AwardRequest{
		UserID:          userID,
		Delta:           a.rules.StreakBonus,
		Type:            models.TransactionStreakBonus,
		Reason:          fmt.Sprintf("streak milestone: %d sessions in a day", sessionsCompleted),
		RelatedEntityID: milestone,
		AwardedAt:       a.clock.Now(),
	})
	if errors.Is(err, ErrDuplicateAward) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to award streak bonus: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("milestone", milestone).
		Int("bonus", tx.Delta).
		Msg("streak bonus awarded")

	a.emitPointsAwarded(ctx, tx)
	return tx.Delta, true, nil
}

// AwardTaskCompletion credits a discrete task achievement. A task already in
// the credited state is a no-op; a task reversed less than the cooldown window
// ago is rejected with ErrCooldownActive.
func (a *App) AwardTaskCompletion(ctx context.Context, userID uuid.UUID, taskID string) (*models.PointTransaction, bool, error) {
	latest, err := a.repo.GetLatestTaskTransaction(ctx, userID, taskID)
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return nil, false, fmt.Errorf("failed to check task state: %w", err)
	}

	if latest != nil {
		switch latest.Type {
		case models.TransactionTaskCompleted:
			return latest, true, nil
		case models.TransactionTaskUncompleted:
			if a.clock.Now().Before(latest.AwardedAt.Add(a.rules.CooldownWindow)) {
				return nil, false, ErrCooldownActive
			}
		}
	}

	tx, err := a.repo.Award(ctx, AwardRequest{
		UserID:          userID,
		Delta:           a.rules.TaskBonus,
		Type:            models.TransactionTaskCompleted,
		Reason:          "task completed",
		RelatedEntityID: taskID,
		AwardedAt:       a.clock.Now(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to award task completion: %w", err)
	}

	a.emitPointsAwarded(ctx, tx)
	return tx, false, nil
}

// ReverseTaskCompletion records that a credited task was un-completed. Inside
// the lock window the award is clawed back; afterwards the reversal is still
// recorded (so the cooldown applies) but costs nothing.
func (a *App) ReverseTaskCompletion(ctx context.Context, userID uuid.UUID, taskID string) (*models.PointTransaction, error) {
	latest, err := a.repo.GetLatestTaskTransaction(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, fmt.Errorf("%w: task %s has no award to reverse", ErrTransactionNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to check task state: %w", err)
	}
	if latest.Type != models.TransactionTaskCompleted {
		// Already reversed; return the existing reversal unchanged.
		return latest, nil
	}

	now := a.clock.Now()
	delta := 0
	if now.Before(latest.AwardedAt.Add(a.rules.ReversalLockWindow)) {
		delta = -a.rules.ReversalPenalty
	}

	metadata, _ := json.Marshal(map[string]string{"reversed_transaction_id": latest.ID.String()})

	tx, err := a.repo.Award(ctx, AwardRequest{
		UserID:          userID,
		Delta:           delta,
		Type:            models.TransactionTaskUncompleted,
		Reason:          "task completion reversed",
		RelatedEntityID: taskID,
		Metadata:        metadata,
		AwardedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reverse task completion: %w", err)
	}

	a.emitPointsAwarded(ctx, tx)
	return tx, nil
}

// emitPointsAwarded enqueues a broadcast event for a balance change. Failures
// are logged, not propagated: the award itself already committed.
func (a *App) emitPointsAwarded(ctx context.Context, tx *models.PointTransaction) {
	if a.outbox == nil {
		return
	}
	payload, err := json.Marshal(events.PointsAwardedPayload{
		UserID:        tx.UserID.String(),
		TransactionID: tx.ID.String(),
		Type:          string(tx.Type),
		Delta:         tx.Delta,
		NewBalance:    tx.NewBalance,
		AwardedAt:     tx.AwardedAt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal PointsAwarded payload")
		return
	}
	if err := a.outbox.InsertPointsAwarded(ctx, tx.UserID, payload); err != nil {
		log.Warn().Err(err).Str("user_id", tx.UserID.String()).Msg("failed to enqueue PointsAwarded event")
	}
}

// GetPointsSummary returns the derived XP/level view.
func (a *App) GetPointsSummary(ctx context.Context, userID uuid.UUID) (*models.PointsSummary, error) {
	xp, err := a.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get points summary: %w", err)
	}
	summary := Summarize(xp)
	return &summary, nil
}

// GetLedgerHistory returns the newest-first audit trail, capped at a sane
// page size.
func (a *App) GetLedgerHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	items, err := a.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history: %w", err)
	}
	return items, nil
}
