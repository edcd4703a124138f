package progress

import (
	"math"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Leveling Curve
// ═══════════════════════════════════════════════════════════════════════════

// NextLevelXP returns the XP required to advance from the given level to the
// next one: floor(level^1.5 * 100). The curve grows superlinearly, so early
// levels come fast and later ones take sustained practice.
//
// For levels below 1 the requirement of level 1 is returned, so a corrupted
// record can never produce a zero or negative threshold.
func NextLevelXP(level shared.Level) shared.XP {
	l := level.Int()
	if l < shared.MinLevel {
		l = shared.MinLevel
	}
	return shared.XP(math.Floor(math.Pow(float64(l), 1.5) * 100))
}

// LevelTransition describes a single level boundary crossed during an award.
type LevelTransition struct {
	From shared.Level
	To   shared.Level
	Rank Rank
}

// Advance applies earned XP to the current level state and resolves any number
// of level-ups. It returns the new level, the XP remaining inside the new
// level, and one transition per boundary crossed, in ascending order.
//
// currentLevelXP is the XP accumulated within the current level, not the
// lifetime total. Leftover XP always carries into the next level.
func Advance(level shared.Level, currentLevelXP, earned shared.XP) (shared.Level, shared.XP, []LevelTransition) {
	if level < shared.MinLevel {
		level = shared.MinLevel
	}

	xp := currentLevelXP + earned
	var transitions []LevelTransition

	for xp >= NextLevelXP(level) {
		xp -= NextLevelXP(level)
		next := level.Next()
		transitions = append(transitions, LevelTransition{
			From: level,
			To:   next,
			Rank: RankForLevel(next),
		})
		level = next
	}

	return level, xp, transitions
}
