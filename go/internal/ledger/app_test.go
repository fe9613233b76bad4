package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/focusd/go/internal/models"
)

// fakeLedgerRepo models the append-only table with the same uniqueness rule
// the partial index enforces: one row per (user, type, related entity) for
// session and streak awards, unbounded rows for task state changes.
type fakeLedgerRepo struct {
	transactions []models.PointTransaction
	balances     map[uuid.UUID]int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{balances: make(map[uuid.UUID]int)}
}

func (r *fakeLedgerRepo) Award(ctx context.Context, req AwardRequest) (*models.PointTransaction, error) {
	if req.Type == models.TransactionSessionCompleted || req.Type == models.TransactionStreakBonus {
		for _, tx := range r.transactions {
			if tx.UserID == req.UserID && tx.Type == req.Type && tx.RelatedEntityID == req.RelatedEntityID {
				return nil, ErrDuplicateAward
			}
		}
	}

	prev := r.balances[req.UserID]
	r.balances[req.UserID] = prev + req.Delta
	tx := models.PointTransaction{
		ID:              uuid.New(),
		UserID:          req.UserID,
		Delta:           req.Delta,
		Type:            req.Type,
		Reason:          req.Reason,
		RelatedEntityID: req.RelatedEntityID,
		PreviousBalance: prev,
		NewBalance:      prev + req.Delta,
		AwardedAt:       req.AwardedAt,
	}
	r.transactions = append(r.transactions, tx)
	return &tx, nil
}

func (r *fakeLedgerRepo) GetTransactionByKey(ctx context.Context, userID uuid.UUID, txType models.TransactionType, relatedEntityID string) (*models.PointTransaction, error) {
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if tx.UserID == userID && tx.Type == txType && tx.RelatedEntityID == relatedEntityID {
			return &tx, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (r *fakeLedgerRepo) GetLatestTaskTransaction(ctx context.Context, userID uuid.UUID, relatedEntityID string) (*models.PointTransaction, error) {
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if tx.UserID == userID && tx.RelatedEntityID == relatedEntityID &&
			(tx.Type == models.TransactionTaskCompleted || tx.Type == models.TransactionTaskUncompleted) {
			return &tx, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (r *fakeLedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.balances[userID], nil
}

func (r *fakeLedgerRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	var out []models.PointTransaction
	for i := len(r.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if r.transactions[i].UserID == userID {
			out = append(out, r.transactions[i])
		}
	}
	return out, nil
}

func setupLedger(t *testing.T) (*App, *fakeLedgerRepo, *clockwork.FakeClock, uuid.UUID) {
	t.Helper()
	repo := newFakeLedgerRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC))
	return NewApp(repo, DefaultRules(), clock, nil), repo, clock, uuid.New()
}

func TestAwardSessionCompletionOnce(t *testing.T) {
	app, repo, _, userID := setupLedger(t)
	ctx := context.Background()

	points, already, err := app.AwardSessionCompletion(ctx, userID, "abc123", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, points)
	assert.False(t, already)

	points, already, err = app.AwardSessionCompletion(ctx, userID, "abc123", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, points)
	assert.True(t, already)

	assert.Len(t, repo.transactions, 1)
	balance, _ := repo.GetBalance(ctx, userID)
	assert.Equal(t, 25, balance)
}

func TestAwardSessionBelowMinimumEarnsNothing(t *testing.T) {
	app, repo, _, userID := setupLedger(t)
	ctx := context.Background()

	points, already, err := app.AwardSessionCompletion(ctx, userID, "tiny", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, points)
	assert.False(t, already)

	// The zero-delta row still claims the id.
	_, already, err = app.AwardSessionCompletion(ctx, userID, "tiny", 3)
	require.NoError(t, err)
	assert.True(t, already)
	assert.Len(t, repo.transactions, 1)
}

func TestAwardStreakBonusOnMilestone(t *testing.T) {
	app, _, _, userID := setupLedger(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	bonus, awarded, err := app.AwardStreakBonus(ctx, userID, day, 3)
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.Equal(t, 0, bonus)

	bonus, awarded, err = app.AwardStreakBonus(ctx, userID, day, 4)
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.Equal(t, 20, bonus)

	// Retrying the same milestone is a no-op.
	_, awarded, err = app.AwardStreakBonus(ctx, userID, day, 4)
	require.NoError(t, err)
	assert.False(t, awarded)
}

func TestTaskCompletionLifecycle(t *testing.T) {
	app, _, clock, userID := setupLedger(t)
	ctx := context.Background()

	tx, already, err := app.AwardTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 10, tx.Delta)

	// Completing an already-credited task changes nothing.
	prior, already, err := app.AwardTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, tx.ID, prior.ID)

	// Reversing inside the lock window claws the award back.
	clock.Advance(2 * time.Minute)
	reversal, err := app.ReverseTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.Equal(t, -10, reversal.Delta)

	// Re-crediting during the cooldown is rejected.
	_, _, err = app.AwardTaskCompletion(ctx, userID, "task-1")
	assert.ErrorIs(t, err, ErrCooldownActive)

	// After the cooldown the task can be credited again.
	clock.Advance(11 * time.Minute)
	tx2, already, err := app.AwardTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 10, tx2.Delta)
}

func TestReverseTaskOutsideLockWindowCostsNothing(t *testing.T) {
	app, repo, clock, userID := setupLedger(t)
	ctx := context.Background()

	_, _, err := app.AwardTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	reversal, err := app.ReverseTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 0, reversal.Delta)

	balance, _ := repo.GetBalance(ctx, userID)
	assert.Equal(t, 10, balance)
}

func TestReverseTaskWithoutAward(t *testing.T) {
	app, _, _, userID := setupLedger(t)

	_, err := app.ReverseTaskCompletion(context.Background(), userID, "ghost")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestReverseTaskTwiceReturnsExistingReversal(t *testing.T) {
	app, _, clock, userID := setupLedger(t)
	ctx := context.Background()

	_, _, err := app.AwardTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	clock.Advance(time.Minute)

	first, err := app.ReverseTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	second, err := app.ReverseTaskCompletion(ctx, userID, "task-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetPointsSummary(t *testing.T) {
	app, _, _, userID := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := app.AwardSessionCompletion(ctx, userID, uuid.New().String(), 25)
		require.NoError(t, err)
	}

	summary, err := app.GetPointsSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 125, summary.XP)
	assert.Equal(t, 2, summary.Level)
	assert.Equal(t, 400, summary.XPForNextLevel)
}

func TestGetLedgerHistoryLimits(t *testing.T) {
	app, _, _, userID := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, err := app.AwardSessionCompletion(ctx, userID, uuid.New().String(), 25)
		require.NoError(t, err)
	}

	history, err := app.GetLedgerHistory(ctx, userID, 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = app.GetLedgerHistory(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 10)
}
