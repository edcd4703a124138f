package ledger

import (
	"context"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// Snapshot returns a deep copy of a user's current progress record, loading
// or initializing it if needed. Mutating the copy never affects the ledger.
func (s *Service) Snapshot(ctx context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	if userID.IsZero() {
		return nil, shared.ErrInvalidUserID
	}
	e, err := s.entry(userID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	record, fresh, err := s.loadLocked(ctx, e, userID)
	if err != nil {
		return nil, err
	}
	if fresh {
		s.publish(ctx, shared.NewUserLoadedEvent(userID.String(), record.Level.Int(), record.TotalXP.Int64(), true))
	}
	return record.Clone(), nil
}

// Level returns the user's current level.
func (s *Service) Level(ctx context.Context, userID shared.UserID) (shared.Level, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return record.Level, nil
}

// XP returns the user's lifetime XP total.
func (s *Service) XP(ctx context.Context, userID shared.UserID) (shared.XP, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return record.TotalXP, nil
}

// Rank returns the user's current rank title.
func (s *Service) Rank(ctx context.Context, userID shared.UserID) (progress.Rank, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.Rank(), nil
}

// Streak returns the user's daily streak state.
func (s *Service) Streak(ctx context.Context, userID shared.UserID) (progress.DailyStreak, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return progress.DailyStreak{}, err
	}
	return record.Streak, nil
}

// LevelProgressPercent returns how far through the current level the user
// is, in [0, 100).
func (s *Service) LevelProgressPercent(ctx context.Context, userID shared.UserID) (float64, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return record.LevelProgressPercent(), nil
}

// SectionProgress returns a copy of one section's progress. A valid key the
// user has never touched returns an empty bucket.
func (s *Service) SectionProgress(ctx context.Context, userID shared.UserID, key progress.SectionKey) (progress.SectionProgress, error) {
	if !progress.IsValidSection(key) {
		return progress.SectionProgress{}, shared.ErrUnknownSection
	}
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return progress.SectionProgress{}, err
	}
	sec, ok := record.Sections[key]
	if !ok {
		return progress.SectionProgress{}, nil
	}
	return *sec, nil
}

// Achievements returns the user's unlocks in unlock order.
func (s *Service) Achievements(ctx context.Context, userID shared.UserID) ([]progress.UnlockedAchievement, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return record.Achievements, nil
}

// HasAchievement reports whether the user has unlocked an achievement.
func (s *Service) HasAchievement(ctx context.Context, userID shared.UserID, id string) (bool, error) {
	record, err := s.Snapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	return record.HasAchievement(id), nil
}

// Catalog returns the achievement rules in evaluation order.
func (s *Service) Catalog() []progress.AchievementRule {
	return s.evaluator.Catalog()
}
