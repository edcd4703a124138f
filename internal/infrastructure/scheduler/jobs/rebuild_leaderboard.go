package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardWriter replaces the full leaderboard contents.
// *redis.Leaderboard satisfies it.
type LeaderboardWriter interface {
	Rebuild(ctx context.Context, scores map[shared.UserID]int64) error
}

// SnapshotWarmer stores a progress snapshot in the read cache.
// *redis.SnapshotCache satisfies it.
type SnapshotWarmer interface {
	Set(ctx context.Context, record *progress.UserProgress) error
}

// RebuildLeaderboardJob reconciles the Redis XP leaderboard against the
// document store. Incremental updates flow through the event subscriber on
// every award; this job repairs drift after cache flushes or missed events.
type RebuildLeaderboardJob struct {
	repo        progress.Repository
	leaderboard LeaderboardWriter
	cache       SnapshotWarmer
	logger      *slog.Logger
	timeout     time.Duration

	lastStats atomic.Value // *RebuildStats
}

// RebuildStats contains statistics from one rebuild run.
type RebuildStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	TotalUsers      int
	SnapshotsWarmed int
	Errors          int
}

// NewRebuildLeaderboardJob creates the leaderboard rebuild job. The snapshot
// cache is optional; when present, loaded records are also warmed into it.
func NewRebuildLeaderboardJob(
	repo progress.Repository,
	leaderboard LeaderboardWriter,
	cache SnapshotWarmer,
	logger *slog.Logger,
	timeout time.Duration,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		repo:        repo,
		leaderboard: leaderboard,
		cache:       cache,
		logger:      logger,
		timeout:     timeout,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Reconciles the Redis XP leaderboard against the document store"
}

// Run executes the rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	stats := &RebuildStats{StartedAt: time.Now()}

	userIDs, err := j.repo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	scores := make(map[shared.UserID]int64, len(userIDs))
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		record, err := j.repo.Get(ctx, userID)
		if err != nil {
			stats.Errors++
			j.logger.Warn("failed to load record", "user_id", userID.String(), "error", err)
			continue
		}
		scores[userID] = int64(record.TotalXP)

		if j.cache != nil {
			if err := j.cache.Set(ctx, record); err != nil {
				j.logger.Warn("failed to warm snapshot cache", "user_id", userID.String(), "error", err)
			} else {
				stats.SnapshotsWarmed++
			}
		}
	}
	stats.TotalUsers = len(scores)

	if err := j.leaderboard.Rebuild(ctx, scores); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	stats.CompletedAt = time.Now()
	j.lastStats.Store(stats)

	j.logger.Info("leaderboard rebuild completed",
		"total_users", stats.TotalUsers,
		"snapshots_warmed", stats.SnapshotsWarmed,
		"errors", stats.Errors,
		"duration", stats.CompletedAt.Sub(stats.StartedAt).String(),
	)
	return nil
}

// LastStats returns statistics from the most recent rebuild.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}
