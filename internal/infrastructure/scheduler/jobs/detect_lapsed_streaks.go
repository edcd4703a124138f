// Package jobs contains the scheduled jobs for InnerLight Progress Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT LAPSED STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectLapsedStreaksJob scans all user records once per day and emits a
// streak.at_risk event for every user whose last activity was exactly
// yesterday. Downstream subscribers turn these into reminder pushes before
// the streak breaks at the next UTC midnight. Users already past the
// boundary are only counted; their streak is reset lazily on next check-in.
type DetectLapsedStreaksJob struct {
	repo      progress.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
	timeout   time.Duration

	lastStats atomic.Value // *LapsedStreakStats
}

// LapsedStreakStats contains statistics from one scan.
type LapsedStreakStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	UsersScanned int
	AtRisk       int
	Lapsed       int
	Errors       int
}

// NewDetectLapsedStreaksJob creates the streak scan job.
func NewDetectLapsedStreaksJob(
	repo progress.Repository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) *DetectLapsedStreaksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &DetectLapsedStreaksJob{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		timeout:   timeout,
	}
}

// Name returns the job name.
func (j *DetectLapsedStreaksJob) Name() string {
	return "detect_lapsed_streaks"
}

// Description returns a human-readable description.
func (j *DetectLapsedStreaksJob) Description() string {
	return "Emits at-risk events for streaks that will break at the next UTC midnight"
}

// Run executes the scan.
func (j *DetectLapsedStreaksJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	stats := &LapsedStreakStats{StartedAt: time.Now()}
	today := timeutil.DateOf(j.clock.Now())

	userIDs, err := j.repo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

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
		stats.UsersScanned++

		switch {
		case record.Streak.AtRisk(today):
			stats.AtRisk++
			event := shared.NewStreakAtRiskEvent(userID.String(), record.Streak.Count)
			if err := j.publisher.Publish(ctx, event); err != nil {
				j.logger.Warn("failed to publish at-risk event", "user_id", userID.String(), "error", err)
			}
		case record.Streak.Lapsed(today):
			stats.Lapsed++
		}
	}

	stats.CompletedAt = time.Now()
	j.lastStats.Store(stats)

	j.logger.Info("streak scan completed",
		"users_scanned", stats.UsersScanned,
		"at_risk", stats.AtRisk,
		"lapsed", stats.Lapsed,
		"errors", stats.Errors,
	)
	return nil
}

// LastStats returns statistics from the most recent scan.
func (j *DetectLapsedStreaksJob) LastStats() *LapsedStreakStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*LapsedStreakStats)
}
