package progress

import (
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Sections
// ═══════════════════════════════════════════════════════════════════════════

// SectionKey identifies one of the fixed content areas tracked per user.
type SectionKey string

// The full set of tracked sections. XP attributed to any other key is ignored.
const (
	SectionMeditation   SectionKey = "meditation"
	SectionOracle       SectionKey = "oracle"
	SectionJournal      SectionKey = "journal"
	SectionAstrology    SectionKey = "astrology"
	SectionNumerology   SectionKey = "numerology"
	SectionTarot        SectionKey = "tarot"
	SectionChakras      SectionKey = "chakras"
	SectionCrystals     SectionKey = "crystals"
	SectionDreams       SectionKey = "dreams"
	SectionRituals      SectionKey = "rituals"
	SectionBreathwork   SectionKey = "breathwork"
	SectionSoundHealing SectionKey = "sound_healing"
	SectionCommunity    SectionKey = "community"
	SectionMentorship   SectionKey = "mentorship"
)

// AllSections lists every valid section key.
var AllSections = []SectionKey{
	SectionMeditation,
	SectionOracle,
	SectionJournal,
	SectionAstrology,
	SectionNumerology,
	SectionTarot,
	SectionChakras,
	SectionCrystals,
	SectionDreams,
	SectionRituals,
	SectionBreathwork,
	SectionSoundHealing,
	SectionCommunity,
	SectionMentorship,
}

// IsValidSection reports whether the key names a tracked section.
func IsValidSection(key SectionKey) bool {
	for _, s := range AllSections {
		if s == key {
			return true
		}
	}
	return false
}

// MaxSectionActivities caps the per-section activity log. The log is a FIFO:
// appending past the cap evicts the oldest entry.
const MaxSectionActivities = 50

// ActivityEntry is one recorded activity inside a section's history.
type ActivityEntry struct {
	// ID is a unique identifier assigned when the entry is recorded.
	ID string `json:"id"`

	// Type is the raw activity type as reported by the caller.
	Type string `json:"type"`

	// RecordedAt is when the activity happened.
	RecordedAt time.Time `json:"recorded_at"`

	// Data carries caller-supplied context (duration, card drawn, etc.).
	Data map[string]any `json:"data,omitempty"`
}

// SectionProgress tracks a user's footprint in one content area.
type SectionProgress struct {
	Visits     int             `json:"visits"`
	XP         shared.XP       `json:"xp"`
	LastVisit  time.Time       `json:"last_visit"`
	Activities []ActivityEntry `json:"activities"`
}

// RecordVisit bumps the visit counter and timestamp.
func (s *SectionProgress) RecordVisit(at time.Time) {
	s.Visits++
	s.LastVisit = at
}

// AddXP attributes XP to this section.
func (s *SectionProgress) AddXP(amount shared.XP) {
	s.XP += amount
}

// AppendActivity adds an entry to the history, evicting the oldest entries
// beyond the cap. Newest entries are always last.
func (s *SectionProgress) AppendActivity(entry ActivityEntry) {
	s.Activities = append(s.Activities, entry)
	if excess := len(s.Activities) - MaxSectionActivities; excess > 0 {
		s.Activities = append([]ActivityEntry(nil), s.Activities[excess:]...)
	}
}
