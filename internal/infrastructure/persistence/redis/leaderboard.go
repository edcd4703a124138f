package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// leaderboardKey is the sorted set holding lifetime XP per user.
const leaderboardKey = PrefixLeaderboard + "xp"

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Position int           `json:"position"`
	UserID   shared.UserID `json:"user_id"`
	TotalXP  int64         `json:"total_xp"`
}

// Leaderboard maintains the global XP ranking in a Redis sorted set. It is a
// derived view: the document store is authoritative and the rebuild job can
// reconstruct the set from scratch.
type Leaderboard struct {
	client *redis.Client
}

// NewLeaderboard creates a leaderboard over a Redis client.
func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// SetScore records a user's lifetime XP.
func (l *Leaderboard) SetScore(ctx context.Context, userID shared.UserID, totalXP int64) error {
	err := l.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(totalXP),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// IncrementScore adds delta to a user's score. Used for achievement reward
// XP, which lands after the award's absolute score write.
func (l *Leaderboard) IncrementScore(ctx context.Context, userID shared.UserID, delta int64) error {
	err := l.client.ZIncrBy(ctx, leaderboardKey, float64(delta), userID.String()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Top returns the highest-XP users, best first. Positions are 1-based.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		id, _ := m.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Position: i + 1,
			UserID:   shared.UserID(id),
			TotalXP:  int64(m.Score),
		})
	}
	return entries, nil
}

// Position returns a user's 1-based rank, or ErrCacheMiss when the user is
// not on the board.
func (l *Leaderboard) Position(ctx context.Context, userID shared.UserID) (int, error) {
	rank, err := l.client.ZRevRank(ctx, leaderboardKey, userID.String()).Result()
	if err == redis.Nil {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return int(rank) + 1, nil
}

// Rebuild atomically replaces the whole set. Used by the worker's
// leaderboard rebuild job.
func (l *Leaderboard) Rebuild(ctx context.Context, scores map[shared.UserID]int64) error {
	members := make([]redis.Z, 0, len(scores))
	for id, xp := range scores {
		members = append(members, redis.Z{Score: float64(xp), Member: id.String()})
	}

	pipe := l.client.TxPipeline()
	pipe.Del(ctx, leaderboardKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, leaderboardKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}
