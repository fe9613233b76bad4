package devicecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mcdev12/focusd/go/internal/models"
)

// SQLiteStore persists timer state in a small per-device SQLite file.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema if needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open device cache: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS timer_state (
		user_id           TEXT PRIMARY KEY,
		mode              TEXT NOT NULL,
		remaining_seconds INTEGER NOT NULL,
		active            INTEGER NOT NULL,
		session_start     INTEGER,
		last_persisted    INTEGER NOT NULL,
		focus_seconds     INTEGER NOT NULL,
		break_seconds     INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create device cache schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*State, error) {
	const query = `
	SELECT mode, remaining_seconds, active, session_start, last_persisted, focus_seconds, break_seconds
	FROM timer_state WHERE user_id = ?`

	var (
		state        State
		active       int
		sessionStart sql.NullInt64
		persisted    int64
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.Mode,
		&state.RemainingSeconds,
		&active,
		&sessionStart,
		&persisted,
		&state.FocusSeconds,
		&state.BreakSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cached state: %w", err)
	}

	state.UserID = userID
	state.Active = active != 0
	state.LastPersisted = time.Unix(persisted, 0).UTC()
	if sessionStart.Valid {
		start := time.Unix(sessionStart.Int64, 0).UTC()
		state.SessionStart = &start
	}
	if state.Mode == "" {
		state.Mode = models.TimerModeFocus
	}
	return &state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	const query = `
	INSERT INTO timer_state (user_id, mode, remaining_seconds, active, session_start, last_persisted, focus_seconds, break_seconds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		mode = excluded.mode,
		remaining_seconds = excluded.remaining_seconds,
		active = excluded.active,
		session_start = excluded.session_start,
		last_persisted = excluded.last_persisted,
		focus_seconds = excluded.focus_seconds,
		break_seconds = excluded.break_seconds`

	active := 0
	if state.Active {
		active = 1
	}
	var sessionStart sql.NullInt64
	if state.SessionStart != nil {
		sessionStart = sql.NullInt64{Int64: state.SessionStart.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		state.UserID,
		string(state.Mode),
		state.RemainingSeconds,
		active,
		sessionStart,
		state.LastPersisted.Unix(),
		state.FocusSeconds,
		state.BreakSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to save cached state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timer_state WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear cached state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
