package ledger

import (
	"context"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// CheckInResult reports the streak outcome of a daily check-in.
type CheckInResult struct {
	Update progress.StreakUpdate

	// Count is the streak length after the check-in.
	Count int

	// Award carries the XP outcome of a continued streak's bonus.
	Award AwardResult
}

// RecordDailyCheckIn advances the daily streak for today. Calling it more
// than once on the same calendar day is a no-op: the streak bonus is awarded
// at most once per day. A continued streak awards bonus XP; a broken one
// emits a streak-broken event with no XP.
func (s *Service) RecordDailyCheckIn(ctx context.Context, userID shared.UserID) (CheckInResult, error) {
	var result CheckInResult
	err := s.mutate(ctx, userID, func(record *progress.UserProgress, now time.Time) ([]shared.Event, error) {
		update := record.Streak.Record(timeutil.DateOf(now))
		result = CheckInResult{Update: update, Count: record.Streak.Count}

		if !update.Started && !update.Continued && !update.Broken {
			// Already checked in today.
			return nil, errNoChange
		}
		record.BumpStat(progress.StatCheckIns)

		var events []shared.Event
		if update.Broken {
			events = append(events, shared.NewStreakBrokenEvent(
				record.UserID.String(), update.PreviousCount))
		}
		if update.Started || update.Continued {
			events = append(events, shared.NewStreakContinuedEvent(
				record.UserID.String(), record.Streak.Count, update.BonusXP.Int64()))
		}

		if update.BonusXP > 0 {
			result.Award = applyAward(record, update.BonusXP, "streak_bonus", "", now, s.evaluator, &events)
		} else {
			// Streak length alone can satisfy achievement rules.
			unlocks := s.evaluator.Evaluate(record, now)
			for _, u := range unlocks {
				events = append(events, shared.NewAchievementUnlockedEvent(
					record.UserID.String(), u.Rule.ID, u.Rule.Title, u.Rule.XPReward.Int64()))
				appendLevelUps(record.UserID, u.Transitions, &events)
			}
		}
		return events, nil
	})
	if err != nil && !shared.IsRetryable(err) {
		return CheckInResult{}, err
	}

	s.log.Debug("daily check-in recorded",
		logger.UserID(userID.String()),
		logger.StreakCount(result.Count))

	return result, err
}
