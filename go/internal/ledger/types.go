package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/focusd/go/internal/models"
)

var (
	// ErrDuplicateAward signals a concurrent writer already recorded the same
	// (user, type, related entity) tuple.
	ErrDuplicateAward = errors.New("transaction already recorded")

	// ErrCooldownActive rejects re-crediting a reversed achievement before its
	// cooldown window has elapsed.
	ErrCooldownActive = errors.New("achievement is in cooldown")

	// ErrTransactionNotFound is returned when no matching ledger entry exists.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Rules holds the reward configuration. Nothing in the award path is
// hardcoded; product tuning happens here.
type Rules struct {
	MinSessionMinutes  int           `yaml:"min_session_minutes"` // sessions shorter than this earn nothing
	PointsPerMinute    int           `yaml:"points_per_minute"`
	TaskBonus          int           `yaml:"task_bonus"`
	ReversalPenalty    int           `yaml:"reversal_penalty"`     // points clawed back when a completion is reversed inside the lock window
	ReversalLockWindow time.Duration `yaml:"reversal_lock_window"` // how long after an award its reversal still claws back points
	CooldownWindow     time.Duration `yaml:"cooldown_window"`      // how long a reversed achievement stays uncreditable
	StreakInterval     int           `yaml:"streak_interval"`      // sessions per streak milestone within a day
	StreakBonus        int           `yaml:"streak_bonus"`
}

// DefaultRules returns the product defaults.
func DefaultRules() Rules {
	return Rules{
		MinSessionMinutes:  5,
		PointsPerMinute:    1,
		TaskBonus:          10,
		ReversalPenalty:    10,
		ReversalLockWindow: 10 * time.Minute,
		CooldownWindow:     10 * time.Minute,
		StreakInterval:     4,
		StreakBonus:        20,
	}
}

// AwardRequest describes one ledger append. Delta is already computed by the
// app layer; the repository only records it atomically.
type AwardRequest struct {
	UserID          uuid.UUID
	Delta           int
	Type            models.TransactionType
	Reason          string
	RelatedEntityID string
	Metadata        json.RawMessage
	AwardedAt       time.Time
}
