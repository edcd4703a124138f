// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
//
// Keeps the Redis read models current as XP lands:
// 1. Updates the user's score in the XP leaderboard sorted set
// 2. Invalidates the cached progress snapshot so the next read is fresh
//
// Events may arrive from this instance (typed) or from another instance via
// Redis Pub/Sub (reconstructed from JSON), so the handler reads the payload
// map rather than asserting a concrete event type.
// ═══════════════════════════════════════════════════════════════════════════

// ScoreWriter updates a single leaderboard score.
// *redis.Leaderboard satisfies it.
type ScoreWriter interface {
	SetScore(ctx context.Context, userID shared.UserID, totalXP int64) error
	IncrementScore(ctx context.Context, userID shared.UserID, delta int64) error
}

// SnapshotInvalidator drops a cached progress snapshot.
// *redis.SnapshotCache satisfies it.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, userID shared.UserID) error
}

// OnXPAwardedHandler projects XP awards into the Redis read models.
type OnXPAwardedHandler struct {
	scores    ScoreWriter
	snapshots SnapshotInvalidator
	logger    *slog.Logger
}

// NewOnXPAwardedHandler creates the handler. Either dependency may be nil,
// in which case that projection is skipped.
func NewOnXPAwardedHandler(scores ScoreWriter, snapshots SnapshotInvalidator, logger *slog.Logger) *OnXPAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnXPAwardedHandler{
		scores:    scores,
		snapshots: snapshots,
		logger:    logger.With("handler", "on_xp_awarded"),
	}
}

// Register subscribes the handler on the bus. Achievement unlocks are also
// handled: their reward XP lands after the award event's absolute score, so
// the leaderboard is adjusted by the bonus amount.
func (h *OnXPAwardedHandler) Register(bus shared.EventBus) error {
	if err := bus.Subscribe(shared.EventXPAwarded, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventAchievementUnlocked, h.Handle)
}

// Handle implements shared.EventHandler.
func (h *OnXPAwardedHandler) Handle(ctx context.Context, event shared.Event) error {
	userID, err := shared.NewUserID(event.AggregateID())
	if err != nil {
		h.logger.Warn("event with invalid aggregate id", "event_type", event.EventType())
		return nil
	}

	if h.scores != nil {
		h.updateScore(ctx, userID, event)
	}

	if h.snapshots != nil {
		if err := h.snapshots.Invalidate(ctx, userID); err != nil {
			h.logger.Warn("failed to invalidate snapshot",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}

	return nil
}

func (h *OnXPAwardedHandler) updateScore(ctx context.Context, userID shared.UserID, event shared.Event) {
	var err error
	switch event.EventType() {
	case shared.EventXPAwarded:
		totalXP, ok := payloadInt64(event.Payload(), "total_xp")
		if !ok {
			h.logger.Warn("event without total_xp", "user_id", userID.String())
			return
		}
		err = h.scores.SetScore(ctx, userID, totalXP)
	case shared.EventAchievementUnlocked:
		bonusXP, ok := payloadInt64(event.Payload(), "bonus_xp")
		if !ok || bonusXP == 0 {
			return
		}
		err = h.scores.IncrementScore(ctx, userID, bonusXP)
	}

	if err != nil {
		h.logger.Warn("failed to update leaderboard score",
			"user_id", userID.String(),
			"error", err,
		)
	}
}

// payloadInt64 reads a numeric payload field. Local events carry int64
// values; remote events decode JSON numbers as float64.
func payloadInt64(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
