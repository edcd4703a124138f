package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/memory"
	"github.com/innerlight-app/innerlight-progress/pkg/retry"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// recordingBus captures published events in order.
type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(_ context.Context, event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

// testClock is a mutable clock for driving streak days.
type testClock struct {
	mu      sync.Mutex
	instant time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instant
}

func (c *testClock) Today() timeutil.CalendarDate {
	return timeutil.DateOf(c.Now())
}

func (c *testClock) advanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instant = c.instant.AddDate(0, 0, n)
}

type fixture struct {
	service *Service
	repo    *memory.Repository
	bus     *recordingBus
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewRepository()
	bus := &recordingBus{}
	clock := &testClock{instant: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}

	service, err := NewService(repo, bus, Options{
		Clock:   clock,
		Retrier: retry.New(retry.WithMaxAttempts(5), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0)),
	})
	require.NoError(t, err)
	t.Cleanup(service.Close)

	return &fixture{service: service, repo: repo, bus: bus, clock: clock}
}

func TestAwardXPConcreteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.AwardXP(ctx, "user-1", 250, "meditation", "")

	require.NoError(t, err)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, shared.Level(2), result.NewLevel)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.Level(2), record.Level)
	assert.Equal(t, shared.XP(150), record.CurrentLevelXP)
	assert.Equal(t, shared.XP(250), record.TotalXP)
	assert.Equal(t, shared.XP(282), record.NextLevelXP())
}

func TestAwardXPRejectsNegativeAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AwardXP(context.Background(), "user-1", -5, "oops", "")

	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	// Nothing was mutated or persisted.
	assert.Equal(t, 0, f.repo.Len())
}

func TestAwardXPEventOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AwardXP(context.Background(), "user-1", 150, "meditation", "")
	require.NoError(t, err)

	types := f.bus.types()
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, shared.EventUserLoaded, types[0])
	assert.Equal(t, shared.EventXPAwarded, types[1])
	assert.Equal(t, shared.EventLevelUp, types[2])
}

func TestAwardXPMultiLevelEmitsEachTransition(t *testing.T) {
	f := newFixture(t)

	// 100 + 282 + 519 crosses exactly three boundaries.
	result, err := f.service.AwardXP(context.Background(), "user-1", 901, "grant", "")
	require.NoError(t, err)
	assert.Equal(t, shared.Level(4), result.NewLevel)

	levelUps := 0
	for _, typ := range f.bus.types() {
		if typ == shared.EventLevelUp {
			levelUps++
		}
	}
	assert.Equal(t, 3, levelUps)
}

func TestAwardXPUnknownSectionStillAwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AwardXP(ctx, "user-1", 40, "bonus", "astral_projection")
	require.NoError(t, err)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(40), record.TotalXP)
	assert.Empty(t, record.Sections)
}

func TestAwardXPSectionAttribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AwardXP(ctx, "user-1", 40, "bonus", progress.SectionTarot)
	require.NoError(t, err)

	sec, err := f.service.SectionProgress(ctx, "user-1", progress.SectionTarot)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(40), sec.XP)
}

func TestLogActivityUnlocksFirstMeditation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.LogActivity(ctx, "user-1", progress.ActivityMeditation, progress.SectionMeditation, map[string]any{"minutes": 10})
	require.NoError(t, err)

	assert.NotEmpty(t, result.EntryID)
	assert.Contains(t, result.Award.UnlockedAchievements, "first-meditation")

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)

	// Activity reward plus the achievement's 50 XP, one transaction.
	assert.Equal(t, shared.XP(75), record.TotalXP)
	assert.Equal(t, int64(1), record.Stat(progress.StatMeditations))
	assert.True(t, record.HasAchievement("first-meditation"))

	sec := record.Sections[progress.SectionMeditation]
	require.NotNil(t, sec)
	assert.Equal(t, 1, sec.Visits)
	require.Len(t, sec.Activities, 1)
	assert.Equal(t, result.EntryID, sec.Activities[0].ID)
}

func TestLogActivityUnmappedType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.LogActivity(ctx, "user-1", "stargazing", progress.SectionAstrology, nil)
	require.NoError(t, err)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)

	// Logged, but no stat bump and no XP.
	assert.Equal(t, shared.XP(0), record.TotalXP)
	assert.Empty(t, record.Stats)
	require.Len(t, record.Sections[progress.SectionAstrology].Activities, 1)
	assert.Equal(t, "stargazing", record.Sections[progress.SectionAstrology].Activities[0].Type)
}

func TestLogActivityRejectsUnknownSection(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.LogActivity(context.Background(), "user-1", progress.ActivityMeditation, "nowhere", nil)
	assert.ErrorIs(t, err, shared.ErrUnknownSection)
}

func TestDailyCheckInOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.Update.Started)
	assert.Equal(t, 1, first.Count)

	second, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, progress.StreakUpdate{}, second.Update)
	assert.Equal(t, 1, second.Count)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Stat(progress.StatCheckIns))
	assert.Equal(t, shared.XP(0), record.TotalXP)
}

func TestDailyCheckInContinuesAndAwardsBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)

	f.clock.advanceDays(1)
	result, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)

	assert.True(t, result.Update.Continued)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, shared.XP(20), result.Update.BonusXP)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(20), record.TotalXP)
}

func TestDailyCheckInBreakAwardsNoXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)
	f.clock.advanceDays(1)
	_, err = f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)

	f.clock.advanceDays(3)
	result, err := f.service.RecordDailyCheckIn(ctx, "user-1")
	require.NoError(t, err)

	assert.True(t, result.Update.Broken)
	assert.Equal(t, 2, result.Update.PreviousCount)
	assert.Equal(t, 1, result.Count)

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	// Only the day-two bonus was ever awarded.
	assert.Equal(t, shared.XP(20), record.TotalXP)

	var sawBroken bool
	for _, typ := range f.bus.types() {
		if typ == shared.EventStreakBroken {
			sawBroken = true
		}
	}
	assert.True(t, sawBroken)
}

func TestCheckInStreakAchievement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.service.RecordDailyCheckIn(ctx, "user-1")
		require.NoError(t, err)
		f.clock.advanceDays(1)
	}

	has, err := f.service.HasAchievement(ctx, "user-1", "week-streak")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestConcurrentAwardsLoseNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const goroutines = 8
	const awards = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < awards; i++ {
				_, err := f.service.AwardXP(ctx, "user-1", 10, "load", "")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(goroutines*awards*10), record.TotalXP)
}

// conflictingRepo injects a concurrent external write before the first Put,
// forcing one revision conflict.
type conflictingRepo struct {
	*memory.Repository
	once sync.Once
}

func (r *conflictingRepo) Put(ctx context.Context, record *progress.UserProgress, expected shared.Revision) error {
	r.once.Do(func() {
		external, err := r.Repository.Get(ctx, record.UserID)
		if shared.IsNotFound(err) {
			external, _ = progress.NewUserProgress(record.UserID, time.Now().UTC())
		}
		external.ApplyXP(10)
		_ = r.Repository.Put(ctx, external, external.Revision)
	})
	return r.Repository.Put(ctx, record, expected)
}

func TestRevisionConflictReappliesOperation(t *testing.T) {
	repo := &conflictingRepo{Repository: memory.NewRepository()}
	bus := &recordingBus{}
	service, err := NewService(repo, bus, Options{})
	require.NoError(t, err)
	defer service.Close()
	ctx := context.Background()

	_, err = service.AwardXP(ctx, "user-1", 100, "meditation", "")
	require.NoError(t, err)

	// The external 10 XP write and the reapplied 100 XP award both survive.
	record, err := service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(110), record.TotalXP)
}

func TestPersistFailureKeepsOptimisticState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.SetFailPuts(true)
	result, err := f.service.AwardXP(ctx, "user-1", 120, "meditation", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	// The caller still sees the outcome and reads reflect it.
	assert.True(t, result.LeveledUp)
	record, serr := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, serr)
	assert.Equal(t, shared.XP(120), record.TotalXP)

	var sawFailure bool
	for _, typ := range f.bus.types() {
		if typ == shared.EventPersistFailed {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)

	// Once the store recovers, the background retry lands the write.
	f.repo.SetFailPuts(false)
	require.Eventually(t, func() bool {
		stored, gerr := f.repo.Get(ctx, "user-1")
		return gerr == nil && stored.TotalXP == 120
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFavoritesAndPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.AddFavorite(ctx, "user-1", "morning-calm"))
	require.NoError(t, f.service.AddFavorite(ctx, "user-1", "morning-calm"))
	require.NoError(t, f.service.SetPreference(ctx, "user-1", "theme", "lunar"))

	record, err := f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"morning-calm"}, record.Favorites)
	assert.Equal(t, "lunar", record.Preferences["theme"])

	require.NoError(t, f.service.RemoveFavorite(ctx, "user-1", "morning-calm"))
	record, err = f.service.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, record.Favorites)
}

func TestClosedServiceRejectsOperations(t *testing.T) {
	f := newFixture(t)
	f.service.Close()

	_, err := f.service.AwardXP(context.Background(), "user-1", 10, "late", "")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}
