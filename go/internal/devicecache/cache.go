package devicecache

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/focusd/go/internal/models"
)

// ErrNotCached is returned when no state is stored for a user on this device.
var ErrNotCached = errors.New("no cached timer state")

// State is the timer state one device persists locally between reloads. It
// deliberately stores no totals: the authoritative baseline always comes from
// the server, the cache only contributes the local timestamps and settings.
type State struct {
	UserID           string
	Mode             models.TimerMode
	RemainingSeconds int
	Active           bool
	SessionStart     *time.Time
	LastPersisted    time.Time
	FocusSeconds     int
	BreakSeconds     int
}

// Store is the device-scoped persistence port. One implementation backs it
// with SQLite; tests use an in-memory fake.
type Store interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, state State) error
	// Clear removes every row for a user in one statement. It runs on
	// sign-out so state can never leak across identities.
	Clear(ctx context.Context, userID string) error
	Close() error
}
