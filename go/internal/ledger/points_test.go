package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp    int
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{10000, 11},
		{-50, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelForXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, 100, XPForNextLevel(1))
	assert.Equal(t, 400, XPForNextLevel(2))
	assert.Equal(t, 900, XPForNextLevel(3))
	assert.Equal(t, 100, XPForNextLevel(0))
}

func TestSummarize(t *testing.T) {
	summary := Summarize(250)
	assert.Equal(t, 250, summary.XP)
	assert.Equal(t, 2, summary.Level)
	assert.Equal(t, 400, summary.XPForNextLevel)
}
