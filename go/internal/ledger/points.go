package ledger

import (
	"math"

	"github.com/mcdev12/focusd/go/internal/models"
)

// Level math is pure and recomputed on every read; level is never stored.

// LevelForXP returns the level for a cumulative XP total:
// level = floor(sqrt(xp / 100)) + 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Sqrt(float64(xp)/100.0)) + 1
}

// XPForNextLevel returns the XP threshold at which the given level ends:
// level^2 * 100.
func XPForNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return level * level * 100
}

// Summarize derives the full points view from a cumulative XP total.
func Summarize(xp int) models.PointsSummary {
	level := LevelForXP(xp)
	return models.PointsSummary{
		XP:             xp,
		Level:          level,
		XPForNextLevel: XPForNextLevel(level),
	}
}
