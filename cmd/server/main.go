// Package main is the entry point for the InnerLight Progress Hub API
// server. It wires the progression ledger to its persistence, read models
// and event plumbing, then serves the HTTP API until a shutdown signal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/innerlight-app/innerlight-progress/config"
	"github.com/innerlight-app/innerlight-progress/internal/application/eventhandler"
	"github.com/innerlight-app/innerlight-progress/internal/application/ledger"
	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/messaging"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/memory"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/postgres"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/redis"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/resilient"
	httpapi "github.com/innerlight-app/innerlight-progress/internal/interface/http"
	"github.com/innerlight-app/innerlight-progress/internal/interface/http/handlers"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	appLog, infraLog := setupLogging(cfg)
	appLog.Info("starting InnerLight Progress Hub API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version))

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var repo progress.Repository

	if cfg.Database.URL != "" {
		appLog.Info("connecting to database")
		dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbConn.Close()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		appLog.Info("database schema is up to date")

		repo = resilient.New(postgres.NewProgressRepository(dbConn), appLog)
		health.AddCheck("database", dbConn.Ping)
	} else {
		// Development fallback. Validate() rejects this in production.
		appLog.Warn("DATABASE_URL not set, using in-memory store")
		repo = memory.NewRepository()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS READ MODELS
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisClient   *goredis.Client
		leaderboard   *redis.Leaderboard
		snapshotCache *redis.SnapshotCache
	)

	if !cfg.Redis.Disabled {
		appLog.Info("connecting to Redis")
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
			appLog.Warn("Redis unavailable, read models disabled", logger.Err(err))
		} else {
			defer redisClient.Close()
			if cfg.Features.IsEnabled(config.FeatureLeaderboard) {
				leaderboard = redis.NewLeaderboard(redisClient)
			}
			if cfg.Features.IsEnabled(config.FeatureSnapshotCache) {
				snapshotCache = redis.NewSnapshotCache(redisClient)
			}
			health.AddCheck("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	localBusCfg := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.EventBus.AsyncMode,
		WorkerPoolSize: cfg.EventBus.WorkerPoolSize,
		Logger:         infraLog,
	}

	var bus eventBus
	if redisClient != nil && cfg.Features.IsEnabled(config.FeatureRedisEventBus) {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisClient),
			ChannelName:    cfg.EventBus.Channel,
			LocalBusConfig: localBusCfg,
			Logger:         infraLog,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		appLog.Info("event bus connected to Redis", logger.String("channel", cfg.EventBus.Channel))
	} else {
		bus = messaging.NewInMemoryEventBus(localBusCfg)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			appLog.Warn("event bus close failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT HANDLERS (read model projections)
	// ─────────────────────────────────────────────────────────────────────────
	if leaderboard != nil || snapshotCache != nil {
		var scores eventhandler.ScoreWriter
		if leaderboard != nil {
			scores = leaderboard
		}
		var invalidator eventhandler.SnapshotInvalidator
		if snapshotCache != nil {
			invalidator = snapshotCache
		}
		projector := eventhandler.NewOnXPAwardedHandler(scores, invalidator, infraLog)
		if err := projector.Register(bus); err != nil {
			return fmt.Errorf("failed to register projections: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. PROGRESSION LEDGER
	// ─────────────────────────────────────────────────────────────────────────
	ledgerSvc, err := ledger.NewService(repo, bus, ledger.Options{
		Logger: appLog.With(logger.Component("ledger")),
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	defer ledgerSvc.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		APIKeyHeader:       cfg.HTTP.APIKeyHeader,
		APIKeyHashes:       cfg.HTTP.APIKeyHashes,
	}

	deps := httpapi.Dependencies{
		Ledger: ledgerSvc,
		Health: health,
		Logger: appLog.With(logger.Component("http")),
	}
	if leaderboard != nil {
		deps.Leaderboard = leaderboard
	}

	server, err := httpapi.NewServer(serverCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverErr := server.StartAsync()
	appLog.Info("InnerLight Progress Hub API is running",
		logger.String("address", serverCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		appLog.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("HTTP shutdown failed", logger.Err(err))
	}

	appLog.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogging builds the application logger plus the slog logger used by
// the infrastructure packages.
func setupLogging(cfg *config.Config) (*logger.Logger, *slog.Logger) {
	appLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	infraLog := slog.New(handler)
	slog.SetDefault(infraLog)

	return appLog, infraLog
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
