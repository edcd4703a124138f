package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

func newTestRecord(t *testing.T) *UserProgress {
	t.Helper()
	record, err := NewUserProgress("user-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return record
}

func TestEvaluatorUnlocksFirstMeditation(t *testing.T) {
	record := newTestRecord(t)
	record.BumpStat(StatMeditations)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	unlocks := NewEvaluator(nil).Evaluate(record, now)

	require.Len(t, unlocks, 1)
	assert.Equal(t, "first-meditation", unlocks[0].Rule.ID)
	assert.Equal(t, now, unlocks[0].UnlockedAt)
	assert.True(t, record.HasAchievement("first-meditation"))
	assert.Equal(t, shared.XP(50), record.TotalXP)
}

func TestEvaluatorIsIdempotent(t *testing.T) {
	record := newTestRecord(t)
	record.BumpStat(StatMeditations)
	evaluator := NewEvaluator(nil)
	now := time.Now().UTC()

	first := evaluator.Evaluate(record, now)
	second := evaluator.Evaluate(record, now)

	require.Len(t, first, 1)
	assert.Empty(t, second, "re-running on unchanged state unlocks nothing")
	assert.Len(t, record.Achievements, 1)
}

func TestEvaluatorChainedUnlocks(t *testing.T) {
	// A level-gated rule whose reward is large enough to satisfy the next
	// level-gated rule must fire in the same evaluation.
	catalog := []AchievementRule{
		{ID: "reach-2", XPReward: 5000, Kind: PredicateLevelAtLeast, Threshold: 2},
		{ID: "reach-5", XPReward: 10, Kind: PredicateLevelAtLeast, Threshold: 5},
	}
	record := newTestRecord(t)
	record.ApplyXP(100) // level 2

	unlocks := NewEvaluator(catalog).Evaluate(record, time.Now().UTC())

	require.Len(t, unlocks, 2)
	assert.Equal(t, "reach-2", unlocks[0].Rule.ID)
	assert.Equal(t, "reach-5", unlocks[1].Rule.ID)
	assert.GreaterOrEqual(t, record.Level.Int(), 5)
}

func TestEvaluatorPredicateKinds(t *testing.T) {
	record := newTestRecord(t)
	record.ApplyXP(450) // level 3 (100 + 282 spent, 68 remaining)
	record.Streak = DailyStreak{Count: 7, Longest: 7}
	record.BumpStat(StatJournalEntries)
	record.Section(SectionJournal).RecordVisit(time.Now())
	record.Section(SectionTarot).RecordVisit(time.Now())

	tests := []struct {
		name string
		rule AchievementRule
		want bool
	}{
		{"stat met", AchievementRule{Kind: PredicateStatAtLeast, Stat: StatJournalEntries, Threshold: 1}, true},
		{"stat not met", AchievementRule{Kind: PredicateStatAtLeast, Stat: StatMeditations, Threshold: 1}, false},
		{"level met", AchievementRule{Kind: PredicateLevelAtLeast, Threshold: 3}, true},
		{"level not met", AchievementRule{Kind: PredicateLevelAtLeast, Threshold: 4}, false},
		{"streak met", AchievementRule{Kind: PredicateStreakAtLeast, Threshold: 7}, true},
		{"total xp met", AchievementRule{Kind: PredicateTotalXPAtLeast, Threshold: 450}, true},
		{"total xp not met", AchievementRule{Kind: PredicateTotalXPAtLeast, Threshold: 451}, false},
		{"sections met", AchievementRule{Kind: PredicateSectionsAtLeast, Threshold: 2}, true},
		{"sections not met", AchievementRule{Kind: PredicateSectionsAtLeast, Threshold: 3}, false},
		{"unlocks", AchievementRule{Kind: PredicateUnlocksAtLeast, Threshold: 1}, false},
		{"unknown kind", AchievementRule{Kind: "unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Satisfied(record))
		})
	}
}

func TestDefaultCatalogIsWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for _, rule := range DefaultCatalog() {
		assert.NotEmpty(t, rule.ID)
		assert.NotEmpty(t, rule.Title)
		assert.NotEmpty(t, rule.Icon, "%s", rule.ID)
		assert.Greater(t, rule.XPReward.Int64(), int64(0), "%s", rule.ID)
		assert.False(t, seen[rule.ID], "duplicate id %s", rule.ID)
		seen[rule.ID] = true

		if rule.Kind == PredicateStatAtLeast {
			assert.NotEmpty(t, rule.Stat, "%s", rule.ID)
		}
	}
}
