package progress

import (
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Rules
// ═══════════════════════════════════════════════════════════════════════════

// PredicateKind selects how an achievement rule is evaluated against the
// user record. Rules are declarative data, so the catalog can be inspected,
// serialized, and tested apart from the evaluator loop.
type PredicateKind string

const (
	// PredicateStatAtLeast fires when Stats[StatKey] >= Threshold.
	PredicateStatAtLeast PredicateKind = "stat_at_least"

	// PredicateLevelAtLeast fires when Level >= Threshold.
	PredicateLevelAtLeast PredicateKind = "level_at_least"

	// PredicateStreakAtLeast fires when the current streak >= Threshold.
	PredicateStreakAtLeast PredicateKind = "streak_at_least"

	// PredicateTotalXPAtLeast fires when TotalXP >= Threshold.
	PredicateTotalXPAtLeast PredicateKind = "total_xp_at_least"

	// PredicateSectionsAtLeast fires when the number of explored sections
	// >= Threshold.
	PredicateSectionsAtLeast PredicateKind = "sections_explored_at_least"

	// PredicateUnlocksAtLeast fires when the number of unlocked
	// achievements >= Threshold.
	PredicateUnlocksAtLeast PredicateKind = "achievements_at_least"
)

// AchievementRule is one entry in the catalog.
type AchievementRule struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	XPReward    shared.XP     `json:"xp_reward"`
	Kind        PredicateKind `json:"kind"`

	// Stat is consulted only for PredicateStatAtLeast.
	Stat StatKey `json:"stat,omitempty"`

	// Threshold is the inclusive lower bound for every predicate kind.
	Threshold int64 `json:"threshold"`
}

// Satisfied evaluates the rule against a record snapshot. No side effects.
func (r AchievementRule) Satisfied(p *UserProgress) bool {
	switch r.Kind {
	case PredicateStatAtLeast:
		return p.Stat(r.Stat) >= r.Threshold
	case PredicateLevelAtLeast:
		return int64(p.Level) >= r.Threshold
	case PredicateStreakAtLeast:
		return int64(p.Streak.Count) >= r.Threshold
	case PredicateTotalXPAtLeast:
		return p.TotalXP.Int64() >= r.Threshold
	case PredicateSectionsAtLeast:
		return int64(p.SectionsExplored()) >= r.Threshold
	case PredicateUnlocksAtLeast:
		return int64(len(p.Achievements)) >= r.Threshold
	default:
		return false
	}
}

// DefaultCatalog returns the built-in achievement catalog, in evaluation
// order.
func DefaultCatalog() []AchievementRule {
	return []AchievementRule{
		{
			ID:          "first-meditation",
			Title:       "First Breath",
			Description: "Complete your first meditation",
			Icon:        "🧘",
			XPReward:    50,
			Kind:        PredicateStatAtLeast,
			Stat:        StatMeditations,
			Threshold:   1,
		},
		{
			ID:          "meditation-devotee",
			Title:       "Devotee of Stillness",
			Description: "Complete 25 meditations",
			Icon:        "🪷",
			XPReward:    150,
			Kind:        PredicateStatAtLeast,
			Stat:        StatMeditations,
			Threshold:   25,
		},
		{
			ID:          "first-reading",
			Title:       "The First Card",
			Description: "Receive your first oracle reading",
			Icon:        "🃏",
			XPReward:    50,
			Kind:        PredicateStatAtLeast,
			Stat:        StatOracleReadings,
			Threshold:   1,
		},
		{
			ID:          "journal-keeper",
			Title:       "Journal Keeper",
			Description: "Write 10 journal entries",
			Icon:        "📖",
			XPReward:    100,
			Kind:        PredicateStatAtLeast,
			Stat:        StatJournalEntries,
			Threshold:   10,
		},
		{
			ID:          "dream-walker",
			Title:       "Dream Walker",
			Description: "Log 5 dreams",
			Icon:        "💤",
			XPReward:    75,
			Kind:        PredicateStatAtLeast,
			Stat:        StatDreamLogs,
			Threshold:   5,
		},
		{
			ID:          "week-streak",
			Title:       "Seven Suns",
			Description: "Stay active 7 days in a row",
			Icon:        "🔥",
			XPReward:    100,
			Kind:        PredicateStreakAtLeast,
			Threshold:   7,
		},
		{
			ID:          "moon-streak",
			Title:       "Full Cycle",
			Description: "Stay active 30 days in a row",
			Icon:        "🌕",
			XPReward:    300,
			Kind:        PredicateStreakAtLeast,
			Threshold:   30,
		},
		{
			ID:          "level-5",
			Title:       "Rising Seeker",
			Description: "Reach level 5",
			Icon:        "🌄",
			XPReward:    100,
			Kind:        PredicateLevelAtLeast,
			Threshold:   5,
		},
		{
			ID:          "level-10",
			Title:       "Steady Apprentice",
			Description: "Reach level 10",
			Icon:        "⛰️",
			XPReward:    200,
			Kind:        PredicateLevelAtLeast,
			Threshold:   10,
		},
		{
			ID:          "level-25",
			Title:       "Deep Adept",
			Description: "Reach level 25",
			Icon:        "🏔️",
			XPReward:    500,
			Kind:        PredicateLevelAtLeast,
			Threshold:   25,
		},
		{
			ID:          "xp-10k",
			Title:       "Ten Thousand Steps",
			Description: "Accumulate 10,000 lifetime XP",
			Icon:        "👣",
			XPReward:    250,
			Kind:        PredicateTotalXPAtLeast,
			Threshold:   10_000,
		},
		{
			ID:          "explorer",
			Title:       "Curious Spirit",
			Description: "Explore 5 different sections",
			Icon:        "🧭",
			XPReward:    100,
			Kind:        PredicateSectionsAtLeast,
			Threshold:   5,
		},
		{
			ID:          "pathfinder",
			Title:       "Pathfinder",
			Description: "Explore every section",
			Icon:        "🗺️",
			XPReward:    300,
			Kind:        PredicateSectionsAtLeast,
			Threshold:   int64(len(AllSections)),
		},
		{
			ID:          "collector",
			Title:       "Keeper of Marks",
			Description: "Unlock 10 achievements",
			Icon:        "🏅",
			XPReward:    200,
			Kind:        PredicateUnlocksAtLeast,
			Threshold:   10,
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Evaluator
// ═══════════════════════════════════════════════════════════════════════════

// Unlock is the outcome of one achievement firing during an evaluation.
type Unlock struct {
	Rule        AchievementRule
	UnlockedAt  time.Time
	Transitions []LevelTransition
}

// Evaluator scans the catalog against a record and unlocks newly satisfied
// achievements.
type Evaluator struct {
	catalog []AchievementRule
}

// NewEvaluator creates an evaluator over a catalog. A nil catalog uses the
// default one.
func NewEvaluator(catalog []AchievementRule) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

// Catalog returns the rules in evaluation order.
func (e *Evaluator) Catalog() []AchievementRule {
	return e.catalog
}

// Evaluate scans the full catalog and unlocks every satisfied rule not yet
// present on the record, applying each rule's XP reward as it fires. Reward
// XP can raise the level and thereby satisfy further rules, so the scan
// repeats until a full pass unlocks nothing. Unlocks are reported in firing
// order and never duplicate an ID.
func (e *Evaluator) Evaluate(p *UserProgress, now time.Time) []Unlock {
	var unlocks []Unlock

	for {
		fired := false
		for _, rule := range e.catalog {
			if p.HasAchievement(rule.ID) || !rule.Satisfied(p) {
				continue
			}
			p.UnlockAchievement(rule.ID, now)
			transitions := p.ApplyXP(rule.XPReward)
			unlocks = append(unlocks, Unlock{
				Rule:        rule,
				UnlockedAt:  now,
				Transitions: transitions,
			})
			fired = true
		}
		if !fired {
			return unlocks
		}
	}
}
