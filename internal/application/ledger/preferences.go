package ledger

import (
	"context"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// AddFavorite pins a content identifier. Adding an existing favorite is a
// no-op.
func (s *Service) AddFavorite(ctx context.Context, userID shared.UserID, contentID string) error {
	if contentID == "" {
		return shared.NewDomainError("ledger", "AddFavorite", shared.ErrEmptyValue, "content ID cannot be empty")
	}
	return s.mutate(ctx, userID, func(record *progress.UserProgress, _ time.Time) ([]shared.Event, error) {
		for _, f := range record.Favorites {
			if f == contentID {
				return nil, errNoChange
			}
		}
		record.Favorites = append(record.Favorites, contentID)
		return nil, nil
	})
}

// RemoveFavorite unpins a content identifier. Removing an absent favorite is
// a no-op.
func (s *Service) RemoveFavorite(ctx context.Context, userID shared.UserID, contentID string) error {
	return s.mutate(ctx, userID, func(record *progress.UserProgress, _ time.Time) ([]shared.Event, error) {
		for i, f := range record.Favorites {
			if f == contentID {
				record.Favorites = append(record.Favorites[:i], record.Favorites[i+1:]...)
				return nil, nil
			}
		}
		return nil, errNoChange
	})
}

// SetPreference stores one user setting. An empty value deletes the key.
func (s *Service) SetPreference(ctx context.Context, userID shared.UserID, key, value string) error {
	if key == "" {
		return shared.NewDomainError("ledger", "SetPreference", shared.ErrEmptyValue, "preference key cannot be empty")
	}
	return s.mutate(ctx, userID, func(record *progress.UserProgress, _ time.Time) ([]shared.Event, error) {
		if value == "" {
			if _, ok := record.Preferences[key]; !ok {
				return nil, errNoChange
			}
			delete(record.Preferences, key)
			return nil, nil
		}
		if record.Preferences == nil {
			record.Preferences = make(map[string]string)
		}
		if record.Preferences[key] == value {
			return nil, errNoChange
		}
		record.Preferences[key] = value
		return nil, nil
	})
}
