// Package main is the entry point for the InnerLight Progress Hub worker.
// The worker runs the periodic maintenance jobs: the evening scan that
// flags streaks about to break, and the leaderboard reconcile that repairs
// the Redis read model against the document store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/innerlight-app/innerlight-progress/config"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/messaging"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/postgres"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/redis"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/scheduler"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/scheduler/jobs"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// eventBus is what the wiring needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for the worker")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting InnerLight Progress Hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// The worker runs migrations too so it never scans a stale schema.
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	repo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS READ MODELS
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisClient   *goredis.Client
		leaderboard   *redis.Leaderboard
		snapshotCache *redis.SnapshotCache
	)

	if !cfg.Redis.Disabled {
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		redisClient, err = redis.NewClient(ctx, redisCfg)
		if err != nil {
			log.Warn("Redis unavailable, leaderboard jobs disabled", "error", err)
		} else {
			defer redisClient.Close()
			if cfg.Features.IsEnabled(config.FeatureLeaderboard) {
				leaderboard = redis.NewLeaderboard(redisClient)
			}
			if cfg.Features.IsEnabled(config.FeatureSnapshotCache) {
				snapshotCache = redis.NewSnapshotCache(redisClient)
			}
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	// Ordering does not matter for the worker's notifications, so handlers
	// run on the async pool.
	localBusCfg := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: cfg.EventBus.WorkerPoolSize,
		Logger:         log,
	}

	var bus eventBus
	if redisClient != nil && cfg.Features.IsEnabled(config.FeatureRedisEventBus) {
		// At-risk events published here reach the API instances too.
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisClient),
			ChannelName:    cfg.EventBus.Channel,
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
	} else {
		bus = messaging.NewInMemoryEventBus(localBusCfg)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker has nothing to do")
		return nil
	}

	sched := scheduler.New(log)

	if cfg.Features.IsEnabled(config.FeatureStreakScan) {
		streakScan := jobs.NewDetectLapsedStreaksJob(
			repo, bus, timeutil.SystemClock{}, log, cfg.Scheduler.JobTimeout)
		schedule := scheduler.NewDailySchedule(
			cfg.Scheduler.StreakScanHour, cfg.Scheduler.StreakScanMinute)
		if err := sched.Register(streakScan, schedule); err != nil {
			return fmt.Errorf("failed to register streak scan: %w", err)
		}
	}

	if leaderboard != nil && cfg.Features.IsEnabled(config.FeatureLeaderboardRebuild) {
		var warmer jobs.SnapshotWarmer
		if snapshotCache != nil {
			warmer = snapshotCache
		}
		rebuild := jobs.NewRebuildLeaderboardJob(
			repo, leaderboard, warmer, log, cfg.Scheduler.JobTimeout)
		schedule := scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)
		if err := sched.Register(rebuild, schedule); err != nil {
			return fmt.Errorf("failed to register leaderboard rebuild: %w", err)
		}
	}

	if len(sched.ListJobs()) == 0 {
		log.Warn("no jobs registered, worker has nothing to do")
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			"job", job.Name,
			"schedule", job.Schedule,
			"next_run", job.NextRun)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging for the worker.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
