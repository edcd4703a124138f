package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

func TestNextLevelXP(t *testing.T) {
	tests := []struct {
		level shared.Level
		want  shared.XP
	}{
		{1, 100},
		{2, 282},
		{3, 519},
		{4, 800},
		{10, 3162},
		{100, 100000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextLevelXP(tt.level), "level %d", tt.level)
	}

	// Corrupted levels below the minimum fall back to the level 1 threshold.
	assert.Equal(t, shared.XP(100), NextLevelXP(0))
	assert.Equal(t, shared.XP(100), NextLevelXP(-3))
}

func TestAdvanceSingleLevelUp(t *testing.T) {
	level, rem, transitions := Advance(1, 0, 250)

	assert.Equal(t, shared.Level(2), level)
	assert.Equal(t, shared.XP(150), rem)
	require.Len(t, transitions, 1)
	assert.Equal(t, shared.Level(1), transitions[0].From)
	assert.Equal(t, shared.Level(2), transitions[0].To)
	assert.Equal(t, RankSeeker, transitions[0].Rank)
}

func TestAdvanceNoLevelUp(t *testing.T) {
	level, rem, transitions := Advance(1, 20, 50)

	assert.Equal(t, shared.Level(1), level)
	assert.Equal(t, shared.XP(70), rem)
	assert.Empty(t, transitions)
}

func TestAdvanceMultiLevelJump(t *testing.T) {
	// Exactly the sum of the level 1, 2, and 3 thresholds crosses three
	// boundaries in one call, each reported in order.
	earned := NextLevelXP(1) + NextLevelXP(2) + NextLevelXP(3)

	level, rem, transitions := Advance(1, 0, earned)

	assert.Equal(t, shared.Level(4), level)
	assert.Equal(t, shared.XP(0), rem)
	require.Len(t, transitions, 3)
	for i, tr := range transitions {
		assert.Equal(t, shared.Level(i+1), tr.From)
		assert.Equal(t, shared.Level(i+2), tr.To)
	}
}

func TestAdvanceLargeGrant(t *testing.T) {
	level, rem, transitions := Advance(1, 0, 10000)

	assert.Greater(t, level.Int(), 1)
	assert.NotEmpty(t, transitions)

	// Remainder always fits inside the final level.
	assert.GreaterOrEqual(t, rem, shared.XP(0))
	assert.Less(t, rem, NextLevelXP(level))

	// Transitions are contiguous from the starting level to the final one.
	assert.Equal(t, shared.Level(1), transitions[0].From)
	assert.Equal(t, level, transitions[len(transitions)-1].To)
}

func TestAdvanceMonotonic(t *testing.T) {
	level := shared.Level(1)
	rem := shared.XP(0)
	total := shared.XP(0)

	awards := []shared.XP{0, 13, 100, 7, 500, 282, 1, 9999}
	for _, a := range awards {
		prev := level
		level, rem, _ = Advance(level, rem, a)
		total += a

		assert.GreaterOrEqual(t, level, prev)
		assert.GreaterOrEqual(t, rem, shared.XP(0))
		assert.Less(t, rem, NextLevelXP(level))
	}
	assert.Equal(t, shared.XP(10902), total)
}
