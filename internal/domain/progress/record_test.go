package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

func TestNewUserProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	record, err := NewUserProgress("user-1", now)

	require.NoError(t, err)
	assert.Equal(t, shared.UserID("user-1"), record.UserID)
	assert.Equal(t, shared.Level(shared.MinLevel), record.Level)
	assert.Equal(t, shared.XP(0), record.TotalXP)
	assert.Equal(t, shared.XP(0), record.CurrentLevelXP)
	assert.Equal(t, SchemaVersion, record.SchemaVersion)
	assert.Equal(t, shared.Revision(0), record.Revision)
	assert.Equal(t, RankSeeker, record.Rank())
	assert.Equal(t, now, record.CreatedAt)
}

func TestNewUserProgressRejectsEmptyID(t *testing.T) {
	_, err := NewUserProgress("", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestApplyXPConcreteScenario(t *testing.T) {
	record := newTestRecord(t)

	transitions := record.ApplyXP(250)

	assert.Equal(t, shared.Level(2), record.Level)
	assert.Equal(t, shared.XP(150), record.CurrentLevelXP)
	assert.Equal(t, shared.XP(250), record.TotalXP)
	assert.Equal(t, shared.XP(282), record.NextLevelXP())
	require.Len(t, transitions, 1)
}

func TestLevelProgressPercent(t *testing.T) {
	record := newTestRecord(t)

	assert.Equal(t, float64(0), record.LevelProgressPercent())

	record.ApplyXP(50)
	assert.InDelta(t, 50.0, record.LevelProgressPercent(), 0.001)

	record.ApplyXP(50) // exactly one level
	assert.Equal(t, float64(0), record.LevelProgressPercent())
}

func TestUnlockAchievementIdempotent(t *testing.T) {
	record := newTestRecord(t)
	now := time.Now().UTC()

	assert.True(t, record.UnlockAchievement("first-meditation", now))
	assert.False(t, record.UnlockAchievement("first-meditation", now.Add(time.Hour)))

	assert.Len(t, record.Achievements, 1)
	assert.Equal(t, now, record.Achievements[0].UnlockedAt)
}

func TestCloneIsDeep(t *testing.T) {
	record := newTestRecord(t)
	record.BumpStat(StatMeditations)
	record.Section(SectionMeditation).AppendActivity(ActivityEntry{ID: "a-1"})
	record.UnlockAchievement("first-meditation", time.Now())
	record.Favorites = []string{"morning-calm"}
	record.Preferences = map[string]string{"theme": "lunar"}

	clone := record.Clone()

	clone.BumpStat(StatMeditations)
	clone.Section(SectionMeditation).AppendActivity(ActivityEntry{ID: "a-2"})
	clone.Section(SectionTarot).RecordVisit(time.Now())
	clone.UnlockAchievement("first-reading", time.Now())
	clone.Favorites[0] = "changed"
	clone.Preferences["theme"] = "solar"

	assert.Equal(t, int64(1), record.Stat(StatMeditations))
	assert.Len(t, record.Section(SectionMeditation).Activities, 1)
	assert.Len(t, record.Sections, 1)
	assert.Len(t, record.Achievements, 1)
	assert.Equal(t, "morning-calm", record.Favorites[0])
	assert.Equal(t, "lunar", record.Preferences["theme"])
}

func TestSectionsExplored(t *testing.T) {
	record := newTestRecord(t)
	assert.Equal(t, 0, record.SectionsExplored())

	record.Section(SectionMeditation).RecordVisit(time.Now())
	record.Section(SectionTarot).AppendActivity(ActivityEntry{ID: "a-1"})

	// A bucket created but never visited does not count.
	record.Section(SectionOracle).AddXP(10)

	assert.Equal(t, 2, record.SectionsExplored())
}
