package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles. Supports gradual rollout by user ID
// hashing plus per-flag environment overrides, so progression features can
// be dialed up cohort by cohort without a redeploy.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Progression Features ===
	FeatureStreakBonuses = "progression.streak_bonuses" // Bonus XP on streak continuation
	FeatureAchievements  = "progression.achievements"   // Achievement evaluation

	// === Read Model Features ===
	FeatureLeaderboard   = "readmodel.leaderboard"    // Redis XP leaderboard
	FeatureSnapshotCache = "readmodel.snapshot_cache" // Cached progress snapshots

	// === Infrastructure Features ===
	FeatureRedisEventBus = "infra.redis_event_bus" // Cross-instance event fan-out

	// === Background Jobs ===
	FeatureStreakScan         = "jobs.streak_scan"         // Evening at-risk streak scan
	FeatureLeaderboardRebuild = "jobs.leaderboard_rebuild" // Periodic leaderboard reconcile
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureStreakBonuses] = &Feature{
		Name:           FeatureStreakBonuses,
		Description:    "Bonus XP on daily streak continuation",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievements] = &Feature{
		Name:           FeatureAchievements,
		Description:    "Declarative achievement evaluation",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboard] = &Feature{
		Name:           FeatureLeaderboard,
		Description:    "Redis-backed XP leaderboard",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSnapshotCache] = &Feature{
		Name:           FeatureSnapshotCache,
		Description:    "Short-TTL progress snapshot cache",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRedisEventBus] = &Feature{
		Name:           FeatureRedisEventBus,
		Description:    "Fan events out to all instances via Redis Pub/Sub",
		Enabled:        false, // single-instance deployments do not need it
		RolloutPercent: 0,
	}

	ff.features[FeatureStreakScan] = &Feature{
		Name:           FeatureStreakScan,
		Description:    "Evening scan emitting streak at-risk events",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardRebuild] = &Feature{
		Name:           FeatureLeaderboardRebuild,
		Description:    "Periodic leaderboard reconcile against the store",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_INFRA_REDIS_EVENT_BUS=true
// Example: FEATURE_PROGRESSION_STREAK_BONUSES=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "jobs.streak_scan" -> "FEATURE_JOBS_STREAK_SCAN"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is globally enabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	return feature.Enabled && feature.RolloutPercent > 0
}

// IsEnabledFor checks if a feature is enabled for a specific user, taking
// the rollout percentage into account. Assignment is stable per user and
// feature, so a user never flips in and out of a rollout.
func (ff *FeatureFlags) IsEnabledFor(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 || userID == "" {
		return false
	}

	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(":"))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < feature.RolloutPercent
}

// SetEnabled overrides a feature at runtime. Used by tests and admin tooling.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return
	}
	feature.Enabled = enabled
	if enabled {
		feature.RolloutPercent = 100
	} else {
		feature.RolloutPercent = 0
	}
}

// List returns a copy of all known features, in no particular order.
// Intended for diagnostics output, not for evaluation.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		result = append(result, *f)
	}
	return result
}
