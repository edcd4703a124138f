package ledger

import (
	"context"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
)

// Identity is one transition on the authentication stream. A zero UserID
// means "signed out".
type Identity struct {
	UserID shared.UserID
}

// LoadUser activates a user's record, loading it from the store or
// initializing a fresh one, and emits a user.loaded event.
func (s *Service) LoadUser(ctx context.Context, userID shared.UserID) error {
	if userID.IsZero() {
		return shared.ErrInvalidUserID
	}
	e, err := s.entry(userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	record, fresh, err := s.loadLocked(ctx, e, userID)
	if err != nil {
		return err
	}

	s.publish(ctx, shared.NewUserLoadedEvent(
		userID.String(), record.Level.Int(), record.TotalXP.Int64(), fresh))
	s.log.Info("user record loaded",
		logger.UserID(userID.String()),
		logger.LevelField(record.Level.Int()),
		logger.Bool("fresh", fresh))
	return nil
}

// LogoutUser releases a user's in-memory record and emits user.logged_out.
// A record with an unflushed write is kept until the background retry
// settles it.
func (s *Service) LogoutUser(ctx context.Context, userID shared.UserID) error {
	if userID.IsZero() {
		return shared.ErrInvalidUserID
	}

	s.mu.Lock()
	e, ok := s.entries[userID]
	if ok {
		e.mu.Lock()
		if !e.dirty {
			delete(s.entries, userID)
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	s.publish(ctx, shared.NewUserLoggedOutEvent(userID.String()))
	s.log.Info("user record released", logger.UserID(userID.String()))
	return nil
}

// ConsumeIdentityStream applies identity transitions from the auth provider
// until the channel closes or the context is cancelled. Each non-zero
// identity loads that user; a zero identity logs out the previously loaded
// one.
func (s *Service) ConsumeIdentityStream(ctx context.Context, stream <-chan Identity) {
	var current shared.UserID
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-stream:
			if !ok {
				return
			}
			if id.UserID.IsZero() {
				if !current.IsZero() {
					if err := s.LogoutUser(ctx, current); err != nil {
						s.log.Warn("logout failed", logger.Err(err))
					}
					current = ""
				}
				continue
			}
			if err := s.LoadUser(ctx, id.UserID); err != nil {
				s.log.Warn("user load failed",
					logger.UserID(id.UserID.String()),
					logger.Err(err))
				continue
			}
			current = id.UserID
		}
	}
}
