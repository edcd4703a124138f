package progress

import (
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// UserProgress Aggregate
// ═══════════════════════════════════════════════════════════════════════════

// SchemaVersion is the current persisted layout version of UserProgress.
const SchemaVersion = 1

// UnlockedAchievement records a single achievement unlock.
type UnlockedAchievement struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// UserProgress is the single mutable aggregate of the progression system.
// One record exists per user. All mutation goes through the ledger service,
// which serializes access per user; the type itself is not safe for
// concurrent use.
type UserProgress struct {
	// UserID identifies the owner. Immutable after creation.
	UserID shared.UserID `json:"user_id"`

	// TotalXP is the lifetime XP sum. Monotonically non-decreasing.
	TotalXP shared.XP `json:"total_xp"`

	// Level is derived from awarded XP via the leveling curve. Never
	// decreases.
	Level shared.Level `json:"level"`

	// CurrentLevelXP is the XP accrued inside the current level.
	// Always in [0, NextLevelXP(Level)).
	CurrentLevelXP shared.XP `json:"current_level_xp"`

	// Streak is the daily activity streak.
	Streak DailyStreak `json:"streak"`

	// Sections maps section keys to per-area progress.
	Sections map[SectionKey]*SectionProgress `json:"sections"`

	// Stats holds named monotonically increasing counters.
	Stats map[StatKey]int64 `json:"stats"`

	// Achievements holds unlocks in unlock order. An ID appears at most once.
	Achievements []UnlockedAchievement `json:"achievements"`

	// Favorites holds user-pinned content identifiers.
	Favorites []string `json:"favorites,omitempty"`

	// Preferences holds free-form user settings.
	Preferences map[string]string `json:"preferences,omitempty"`

	// SchemaVersion is the persisted layout version.
	SchemaVersion int `json:"schema_version"`

	// Revision is the optimistic concurrency counter. It reflects the last
	// successfully persisted revision and is advanced by the store on write.
	Revision shared.Revision `json:"revision"`

	// CreatedAt is when the record was first initialized.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time of the last mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProgress creates a zeroed record for a first-time user.
func NewUserProgress(userID shared.UserID, now time.Time) (*UserProgress, error) {
	if userID.IsZero() {
		return nil, shared.ErrInvalidUserID
	}
	return &UserProgress{
		UserID:        userID,
		Level:         shared.MinLevel,
		Sections:      make(map[SectionKey]*SectionProgress),
		Stats:         make(map[StatKey]int64),
		SchemaVersion: SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NextLevelXP returns the XP needed to complete the current level.
func (p *UserProgress) NextLevelXP() shared.XP {
	return NextLevelXP(p.Level)
}

// Rank returns the title for the current level.
func (p *UserProgress) Rank() Rank {
	return RankForLevel(p.Level)
}

// LevelProgressPercent returns how far through the current level the user is,
// in [0, 100).
func (p *UserProgress) LevelProgressPercent() float64 {
	need := p.NextLevelXP()
	if need <= 0 {
		return 0
	}
	return float64(p.CurrentLevelXP) / float64(need) * 100
}

// Section returns the progress bucket for a key, creating it on first touch.
// Callers must validate the key first; unknown keys are the caller's bug.
func (p *UserProgress) Section(key SectionKey) *SectionProgress {
	if p.Sections == nil {
		p.Sections = make(map[SectionKey]*SectionProgress)
	}
	sec, ok := p.Sections[key]
	if !ok {
		sec = &SectionProgress{}
		p.Sections[key] = sec
	}
	return sec
}

// Stat returns a counter value. Missing counters read as zero.
func (p *UserProgress) Stat(key StatKey) int64 {
	return p.Stats[key]
}

// BumpStat increments a counter by one.
func (p *UserProgress) BumpStat(key StatKey) {
	if p.Stats == nil {
		p.Stats = make(map[StatKey]int64)
	}
	p.Stats[key]++
}

// HasAchievement reports whether the achievement is already unlocked.
func (p *UserProgress) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// UnlockAchievement appends an unlock if not already present. Returns true
// when the unlock was new.
func (p *UserProgress) UnlockAchievement(id string, at time.Time) bool {
	if p.HasAchievement(id) {
		return false
	}
	p.Achievements = append(p.Achievements, UnlockedAchievement{ID: id, UnlockedAt: at})
	return true
}

// SectionsExplored counts sections with at least one visit or activity.
func (p *UserProgress) SectionsExplored() int {
	n := 0
	for _, sec := range p.Sections {
		if sec.Visits > 0 || len(sec.Activities) > 0 {
			n++
		}
	}
	return n
}

// ApplyXP adds earned XP to the totals and resolves level-ups. It returns
// the transitions crossed, in order. Section attribution is the caller's
// responsibility.
func (p *UserProgress) ApplyXP(earned shared.XP) []LevelTransition {
	p.TotalXP += earned
	level, rem, transitions := Advance(p.Level, p.CurrentLevelXP, earned)
	p.Level = level
	p.CurrentLevelXP = rem
	return transitions
}

// Clone returns a deep copy. Used for snapshots handed to readers and for
// conflict-retry bookkeeping, so mutation of the copy never leaks back.
func (p *UserProgress) Clone() *UserProgress {
	cp := *p

	cp.Sections = make(map[SectionKey]*SectionProgress, len(p.Sections))
	for key, sec := range p.Sections {
		secCopy := *sec
		secCopy.Activities = append([]ActivityEntry(nil), sec.Activities...)
		cp.Sections[key] = &secCopy
	}

	cp.Stats = make(map[StatKey]int64, len(p.Stats))
	for key, v := range p.Stats {
		cp.Stats[key] = v
	}

	cp.Achievements = append([]UnlockedAchievement(nil), p.Achievements...)
	cp.Favorites = append([]string(nil), p.Favorites...)

	if p.Preferences != nil {
		cp.Preferences = make(map[string]string, len(p.Preferences))
		for k, v := range p.Preferences {
			cp.Preferences[k] = v
		}
	}

	return &cp
}
