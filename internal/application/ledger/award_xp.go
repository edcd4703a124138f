package ledger

import (
	"context"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
)

// AwardResult reports what an XP award changed.
type AwardResult struct {
	// Amount is the base XP awarded, excluding achievement rewards.
	Amount shared.XP

	// LeveledUp is true when at least one level boundary was crossed,
	// including boundaries crossed by achievement reward XP.
	LeveledUp bool

	// NewLevel is the level after the award.
	NewLevel shared.Level

	// NewRank is the rank after the award.
	NewRank progress.Rank

	// UnlockedAchievements lists achievement IDs unlocked by this award,
	// in firing order.
	UnlockedAchievements []string
}

// AwardXP adds XP to a user's total, attributes it to a section when the key
// is known, resolves level-ups, scans achievements, and persists once. Events
// fire in order: XP awarded, level-ups, achievement unlocks.
//
// A negative amount is rejected before any mutation. An unknown section key
// drops the section attribution but the base award still proceeds.
func (s *Service) AwardXP(ctx context.Context, userID shared.UserID, amount int64, reason string, section progress.SectionKey) (AwardResult, error) {
	xp, err := shared.NewXP(amount)
	if err != nil {
		return AwardResult{}, shared.ErrInvalidAmount
	}

	var result AwardResult
	err = s.mutate(ctx, userID, func(record *progress.UserProgress, now time.Time) ([]shared.Event, error) {
		var events []shared.Event
		result = applyAward(record, xp, reason, section, now, s.evaluator, &events)
		return events, nil
	})
	if err != nil && !shared.IsRetryable(err) {
		return AwardResult{}, err
	}

	s.log.Debug("xp awarded",
		logger.UserID(userID.String()),
		logger.XPAmount(int(amount)),
		logger.String("reason", reason),
		logger.LevelField(result.NewLevel.Int()))

	return result, err
}

// applyAward is the shared mutation body behind AwardXP, LogActivity, and
// RecordDailyCheckIn. It mutates the record and appends the resulting events
// in emission order.
func applyAward(record *progress.UserProgress, xp shared.XP, reason string, section progress.SectionKey, now time.Time, evaluator *progress.Evaluator, events *[]shared.Event) AwardResult {
	if section != "" && progress.IsValidSection(section) {
		record.Section(section).AddXP(xp)
	}

	transitions := record.ApplyXP(xp)

	*events = append(*events, shared.NewXPAwardedEvent(
		record.UserID.String(), xp.Int64(), reason, record.TotalXP.Int64()))
	appendLevelUps(record.UserID, transitions, events)

	unlocks := evaluator.Evaluate(record, now)
	unlockedIDs := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		unlockedIDs = append(unlockedIDs, u.Rule.ID)
		*events = append(*events, shared.NewAchievementUnlockedEvent(
			record.UserID.String(), u.Rule.ID, u.Rule.Title, u.Rule.XPReward.Int64()))
		appendLevelUps(record.UserID, u.Transitions, events)
		transitions = append(transitions, u.Transitions...)
	}

	return AwardResult{
		Amount:               xp,
		LeveledUp:            len(transitions) > 0,
		NewLevel:             record.Level,
		NewRank:              record.Rank(),
		UnlockedAchievements: unlockedIDs,
	}
}

// appendLevelUps emits one event per crossed level boundary, in order.
func appendLevelUps(userID shared.UserID, transitions []progress.LevelTransition, events *[]shared.Event) {
	for _, tr := range transitions {
		*events = append(*events, shared.NewLevelUpEvent(
			userID.String(), tr.From.Int(), tr.To.Int(), tr.Rank.String()))
	}
}
