package progress

import (
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// Daily Streak
// ═══════════════════════════════════════════════════════════════════════════

const (
	// StreakBonusPerDay is the XP awarded per day of the streak on continuation.
	StreakBonusPerDay = 10

	// StreakBonusCap limits the daily streak bonus.
	StreakBonusCap = 200
)

// DailyStreak tracks consecutive days of activity. Days are anchored to UTC
// calendar dates, so a user checking in at 23:59 and again at 00:01 counts
// two separate days.
type DailyStreak struct {
	// Count is the number of consecutive active days. Zero means no streak.
	Count int `json:"count"`

	// Longest is the best streak ever reached.
	Longest int `json:"longest"`

	// LastActiveDate is the calendar date of the most recent activity.
	LastActiveDate timeutil.CalendarDate `json:"last_active_date"`
}

// StreakUpdate describes the outcome of recording one day of activity.
type StreakUpdate struct {
	// Started is true when this activity opened a fresh streak (first ever
	// activity, or the first one after a break).
	Started bool

	// Continued is true when the streak advanced by one day.
	Continued bool

	// Broken is true when a gap of more than one day reset the streak.
	// Broken and Started are both set on a post-gap check-in.
	Broken bool

	// PreviousCount is the streak length before a break. Only meaningful
	// when Broken is true.
	PreviousCount int

	// BonusXP is the streak bonus for a continued streak. Zero on a fresh
	// start, a post-break restart, and a same-day repeat.
	BonusXP shared.XP
}

// Record registers activity on the given date and advances the streak state
// machine. A second activity on the same date is a no-op. An activity exactly
// one day after the last extends the streak. Anything later breaks it and
// starts a new one-day streak.
func (s *DailyStreak) Record(today timeutil.CalendarDate) StreakUpdate {
	if s.LastActiveDate.IsZero() {
		s.Count = 1
		s.LastActiveDate = today
		s.touchLongest()
		return StreakUpdate{Started: true}
	}

	switch days := s.LastActiveDate.DaysUntil(today); {
	case days <= 0:
		// Same day, or clock skew moving backwards. Nothing changes.
		return StreakUpdate{}

	case days == 1:
		s.Count++
		s.LastActiveDate = today
		s.touchLongest()
		return StreakUpdate{Continued: true, BonusXP: s.bonus()}

	default:
		previous := s.Count
		s.Count = 1
		s.LastActiveDate = today
		s.touchLongest()
		return StreakUpdate{
			Started:       true,
			Broken:        true,
			PreviousCount: previous,
		}
	}
}

// AtRisk reports whether the streak will break unless the user is active
// today: there is a live streak and the last activity was exactly yesterday.
func (s *DailyStreak) AtRisk(today timeutil.CalendarDate) bool {
	if s.Count == 0 || s.LastActiveDate.IsZero() {
		return false
	}
	return s.LastActiveDate.DaysUntil(today) == 1
}

// Lapsed reports whether the streak has already been broken by inactivity:
// the last activity was more than one day ago.
func (s *DailyStreak) Lapsed(today timeutil.CalendarDate) bool {
	if s.Count == 0 || s.LastActiveDate.IsZero() {
		return false
	}
	return s.LastActiveDate.DaysUntil(today) > 1
}

// bonus computes the streak bonus for the current count.
func (s *DailyStreak) bonus() shared.XP {
	bonus := s.Count * StreakBonusPerDay
	if bonus > StreakBonusCap {
		bonus = StreakBonusCap
	}
	return shared.XP(bonus)
}

func (s *DailyStreak) touchLongest() {
	if s.Count > s.Longest {
		s.Longest = s.Count
	}
}
