package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
)

// ActivityResult reports what logging an activity changed.
type ActivityResult struct {
	// EntryID is the identifier assigned to the recorded activity.
	EntryID string

	// Award carries the XP outcome when the activity type has a reward.
	Award AwardResult
}

// LogActivity appends an activity record to a section's capped history,
// bumps the stat counter mapped to the activity type, and awards the
// activity's fixed XP with the section attributed. An activity type without
// a mapping still appends the raw log entry but bumps no stat and awards
// no XP.
//
// The section key must be valid: unlike XP attribution, an activity log has
// nowhere meaningful to go without its section.
func (s *Service) LogActivity(ctx context.Context, userID shared.UserID, activityType progress.ActivityType, section progress.SectionKey, data map[string]any) (ActivityResult, error) {
	if !progress.IsValidSection(section) {
		return ActivityResult{}, shared.ErrUnknownSection
	}

	entryID := uuid.NewString()
	var result ActivityResult
	err := s.mutate(ctx, userID, func(record *progress.UserProgress, now time.Time) ([]shared.Event, error) {
		sec := record.Section(section)
		sec.RecordVisit(now)
		sec.AppendActivity(progress.ActivityEntry{
			ID:         entryID,
			Type:       string(activityType),
			RecordedAt: now,
			Data:       data,
		})

		result = ActivityResult{EntryID: entryID}

		rule, ok := progress.RuleFor(activityType)
		if !ok {
			// Unmapped type: history only, no stat, no XP.
			return nil, nil
		}
		record.BumpStat(rule.Stat)

		var events []shared.Event
		result.Award = applyAward(record, rule.XPReward, string(activityType), section, now, s.evaluator, &events)
		return events, nil
	})
	if err != nil && !shared.IsRetryable(err) {
		return ActivityResult{}, err
	}

	s.log.Debug("activity logged",
		logger.UserID(userID.String()),
		logger.ActivityType(string(activityType)),
		logger.Section(string(section)))

	return result, err
}
