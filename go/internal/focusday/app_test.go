package focusday

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

// fakeRepo mimics the durable day record with the same idempotency semantics
// the SQL layer provides: session ids are claimed once, saves never touch
// completed minutes.
type fakeRepo struct {
	days     map[string]*models.FocusDay
	sessions map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		days:     make(map[string]*models.FocusDay),
		sessions: make(map[string]bool),
	}
}

func dayKey(userID uuid.UUID, day time.Time) string {
	return userID.String() + day.Format("2006-01-02")
}

func (r *fakeRepo) getOrCreate(userID uuid.UUID, day time.Time) *models.FocusDay {
	key := dayKey(userID, day)
	if record, ok := r.days[key]; ok {
		return record
	}
	record := &models.FocusDay{ID: uuid.New(), UserID: userID, Day: day}
	r.days[key] = record
	return record
}

func (r *fakeRepo) GetDay(ctx context.Context, userID uuid.UUID, day time.Time) (*models.FocusDay, error) {
	record, ok := r.days[dayKey(userID, day)]
	if !ok {
		return nil, ErrDayNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepo) UpsertActiveProgress(ctx context.Context, userID uuid.UUID, day time.Time, activeMinutes int, sessionStart *time.Time, now time.Time) (*models.FocusDay, error) {
	record := r.getOrCreate(userID, day)
	record.ActiveMinutes = activeMinutes
	record.SessionStartTime = sessionStart
	record.LastUpdated = now
	copied := *record
	return &copied, nil
}

func (r *fakeRepo) CompleteSession(ctx context.Context, userID uuid.UUID, day time.Time, sessionID string, focusMinutes, goalMinutes int, now time.Time) (*models.FocusDay, bool, error) {
	record := r.getOrCreate(userID, day)
	if r.sessions[sessionID] {
		copied := *record
		return &copied, false, nil
	}
	r.sessions[sessionID] = true
	record.CompletedMinutes += focusMinutes
	record.ActiveMinutes = 0
	record.SessionStartTime = nil
	record.SessionsCompleted++
	record.AchievedGoal = record.CompletedMinutes >= goalMinutes
	record.LastUpdated = now
	copied := *record
	return &copied, true, nil
}

type fakeLedger struct {
	awarded      map[string]int
	streakBonus  int
	perMinute    int
	streakEvery  int
	streakAwards int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{awarded: make(map[string]int), perMinute: 1, streakEvery: 4, streakBonus: 20}
}

func (l *fakeLedger) AwardSessionCompletion(ctx context.Context, userID uuid.UUID, sessionID string, focusMinutes int) (int, bool, error) {
	if points, ok := l.awarded[sessionID]; ok {
		return points, true, nil
	}
	points := focusMinutes * l.perMinute
	l.awarded[sessionID] = points
	return points, false, nil
}

func (l *fakeLedger) AwardStreakBonus(ctx context.Context, userID uuid.UUID, day time.Time, sessionsCompleted int) (int, bool, error) {
	if l.streakEvery > 0 && sessionsCompleted%l.streakEvery == 0 {
		l.streakAwards++
		return l.streakBonus, true, nil
	}
	return 0, false, nil
}

type fakeOutbox struct {
	progressSaved    int
	sessionCompleted int
}

func (o *fakeOutbox) InsertProgressSaved(ctx context.Context, userID uuid.UUID, payload []byte) error {
	o.progressSaved++
	return nil
}

func (o *fakeOutbox) InsertSessionCompleted(ctx context.Context, userID uuid.UUID, payload []byte) error {
	o.sessionCompleted++
	return nil
}

func setupApp(t *testing.T) (*App, *fakeRepo, *fakeLedger, *fakeOutbox, uuid.UUID) {
	t.Helper()
	repo := newFakeRepo()
	ledger := newFakeLedger()
	outbox := &fakeOutbox{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC))
	app := NewApp(repo, ledger, outbox, clock, DefaultConfig())
	return app, repo, ledger, outbox, uuid.New()
}

func TestGetTodayProgressEmptyDay(t *testing.T) {
	app, _, _, _, userID := setupApp(t)

	progress, err := app.GetTodayProgress(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletedMinutes)
	assert.Equal(t, 0, progress.SessionsCompleted)
	assert.Nil(t, progress.SessionStartTime)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), progress.Day)
}

func TestSaveActiveProgressNeverChangesCompleted(t *testing.T) {
	app, repo, _, outbox, userID := setupApp(t)
	ctx := context.Background()

	// Establish a committed baseline first.
	_, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 25, SessionID: "s1"})
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		result, err := app.SaveActiveProgress(ctx, userID, SaveActiveProgressRequest{
			ActiveMinutes:    i,
			SessionStartTime: start,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, result.CompletedMinutes)
		assert.Equal(t, i, result.ActiveMinutes)
	}

	record, err := repo.GetDay(ctx, userID, app.Today())
	require.NoError(t, err)
	assert.Equal(t, 25, record.CompletedMinutes)
	assert.Equal(t, 5, outbox.progressSaved)
}

func TestSaveActiveProgressValidation(t *testing.T) {
	app, _, _, _, userID := setupApp(t)
	ctx := context.Background()

	_, err := app.SaveActiveProgress(ctx, userID, SaveActiveProgressRequest{ActiveMinutes: -1, SessionStartTime: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = app.SaveActiveProgress(ctx, userID, SaveActiveProgressRequest{ActiveMinutes: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSaveActiveProgressClampsFutureStart(t *testing.T) {
	app, repo, _, _, userID := setupApp(t)
	ctx := context.Background()

	future := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	_, err := app.SaveActiveProgress(ctx, userID, SaveActiveProgressRequest{
		ActiveMinutes:    0,
		SessionStartTime: future,
	})
	require.NoError(t, err)

	record, err := repo.GetDay(ctx, userID, app.Today())
	require.NoError(t, err)
	require.NotNil(t, record.SessionStartTime)
	assert.True(t, record.SessionStartTime.Equal(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)))
}

func TestCompleteSessionIsIdempotent(t *testing.T) {
	app, _, _, outbox, userID := setupApp(t)
	ctx := context.Background()

	first, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 25, SessionID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, 25, first.CompletedMinutes)
	assert.Equal(t, 1, first.SessionsCompleted)
	assert.Equal(t, 25, first.PointsAwarded)
	assert.False(t, first.AlreadyCompleted)

	second, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 25, SessionID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, 25, second.CompletedMinutes)
	assert.Equal(t, 1, second.SessionsCompleted)
	assert.Equal(t, 0, second.PointsAwarded)
	assert.True(t, second.AlreadyCompleted)

	assert.Equal(t, 1, outbox.sessionCompleted)
}

func TestCompletedMinutesMonotonic(t *testing.T) {
	app, _, _, _, userID := setupApp(t)
	ctx := context.Background()

	last := 0
	for i, minutes := range []int{25, 15, 25, 5} {
		result, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{
			FocusMinutes: minutes,
			SessionID:    uuid.New().String(),
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.CompletedMinutes, last)
		assert.Equal(t, i+1, result.SessionsCompleted)
		last = result.CompletedMinutes
	}
	assert.Equal(t, 70, last)
}

func TestCompleteSessionAchievesGoal(t *testing.T) {
	app, _, _, _, userID := setupApp(t)
	ctx := context.Background()

	result, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 60, SessionID: "s1"})
	require.NoError(t, err)
	assert.False(t, result.AchievedGoal)

	result, err = app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 60, SessionID: "s2"})
	require.NoError(t, err)
	assert.True(t, result.AchievedGoal)
}

func TestCompleteSessionStreakBonus(t *testing.T) {
	app, _, ledger, _, userID := setupApp(t)
	ctx := context.Background()

	var results []*CompleteSessionResult
	for i := 0; i < 4; i++ {
		result, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{
			FocusMinutes: 25,
			SessionID:    uuid.New().String(),
		})
		require.NoError(t, err)
		results = append(results, result)
	}

	assert.Equal(t, 25, results[2].PointsAwarded)
	assert.Equal(t, 45, results[3].PointsAwarded)
	assert.Equal(t, 1, ledger.streakAwards)
}

func TestCompleteSessionValidation(t *testing.T) {
	app, _, _, _, userID := setupApp(t)
	ctx := context.Background()

	_, err := app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 25})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 0, SessionID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = app.CompleteSession(ctx, userID, CompleteSessionRequest{FocusMinutes: 500, SessionID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
