package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionActivityCap(t *testing.T) {
	var sec SectionProgress

	for i := 1; i <= MaxSectionActivities+1; i++ {
		sec.AppendActivity(ActivityEntry{
			ID:   fmt.Sprintf("a-%d", i),
			Type: string(ActivityMeditation),
		})
	}

	require.Len(t, sec.Activities, MaxSectionActivities)

	// The first entry was evicted; the newest is last.
	assert.Equal(t, "a-2", sec.Activities[0].ID)
	assert.Equal(t, fmt.Sprintf("a-%d", MaxSectionActivities+1),
		sec.Activities[len(sec.Activities)-1].ID)
}

func TestSectionRecordVisit(t *testing.T) {
	var sec SectionProgress
	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	sec.RecordVisit(at)
	sec.RecordVisit(at.Add(time.Hour))

	assert.Equal(t, 2, sec.Visits)
	assert.Equal(t, at.Add(time.Hour), sec.LastVisit)
}

func TestIsValidSection(t *testing.T) {
	for _, key := range AllSections {
		assert.True(t, IsValidSection(key), "%s", key)
	}
	assert.False(t, IsValidSection("astral_projection"))
	assert.False(t, IsValidSection(""))
}

func TestAllSectionsCount(t *testing.T) {
	assert.Len(t, AllSections, 14)

	seen := make(map[SectionKey]bool)
	for _, key := range AllSections {
		assert.False(t, seen[key], "duplicate section %s", key)
		seen[key] = true
	}
}
