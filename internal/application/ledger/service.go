// Package ledger implements the progression ledger: the single writer of
// user progress records. It composes the leveling curve, streak tracker,
// achievement evaluator, and persistence gateway, and emits domain events
// for every observable change.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
	"github.com/innerlight-app/innerlight-progress/pkg/retry"
	"github.com/innerlight-app/innerlight-progress/pkg/timeutil"
)

// maxConflictRetries bounds how many times a mutation is reapplied against
// freshly loaded state after a revision conflict before giving up.
const maxConflictRetries = 3

// Service is the progression ledger. All mutations for a single user are
// serialized through a per-user lock, so the read-modify-scan-persist
// sequence never races with itself.
type Service struct {
	repo      progress.Repository
	bus       shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
	evaluator *progress.Evaluator
	retrier   *retry.Retrier

	mu      sync.Mutex
	entries map[shared.UserID]*userEntry
	closed  bool

	wg sync.WaitGroup
}

// userEntry holds the live record for one user plus its serialization lock.
type userEntry struct {
	mu sync.Mutex

	// record is the current in-memory state. Nil until first load.
	record *progress.UserProgress

	// dirty is set when the in-memory state is ahead of the store after a
	// failed persist. A background retry clears it.
	dirty bool
}

// Options configures optional service collaborators.
type Options struct {
	// Clock defaults to the system clock.
	Clock timeutil.Clock

	// Logger defaults to a no-op-level default logger.
	Logger *logger.Logger

	// Catalog overrides the built-in achievement catalog.
	Catalog []progress.AchievementRule

	// Retrier overrides the background persist retrier.
	Retrier *retry.Retrier
}

// NewService creates a ledger over a repository and event bus.
func NewService(repo progress.Repository, bus shared.EventPublisher, opts Options) (*Service, error) {
	if repo == nil {
		return nil, shared.NewDomainError("ledger", "NewService", shared.ErrInvalidInput, "repository is required")
	}
	if bus == nil {
		return nil, shared.NewDomainError("ledger", "NewService", shared.ErrInvalidInput, "event bus is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default().With(logger.Component("ledger"))
	}
	retrier := opts.Retrier
	if retrier == nil {
		retrier = retry.BackgroundPersistRetrier()
	}

	return &Service{
		repo:      repo,
		bus:       bus,
		clock:     clock,
		log:       log,
		evaluator: progress.NewEvaluator(opts.Catalog),
		retrier:   retrier,
		entries:   make(map[shared.UserID]*userEntry),
	}, nil
}

// Close waits for in-flight background persists to finish. The service
// rejects new operations once closed.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// entry returns the lock-holder for a user, creating it on first use.
func (s *Service) entry(userID shared.UserID) (*userEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, shared.ErrLedgerClosed
	}
	e, ok := s.entries[userID]
	if !ok {
		e = &userEntry{}
		s.entries[userID] = e
	}
	return e, nil
}

// loadLocked ensures the entry holds a record, loading or initializing one.
// A missing record is the first-time path, not an error. Caller holds e.mu.
func (s *Service) loadLocked(ctx context.Context, e *userEntry, userID shared.UserID) (*progress.UserProgress, bool, error) {
	if e.record != nil {
		return e.record, false, nil
	}

	record, err := s.repo.Get(ctx, userID)
	switch {
	case err == nil:
		if record.SchemaVersion > progress.SchemaVersion {
			return nil, false, shared.ErrSchemaVersion
		}
		e.record = record
		return record, false, nil

	case shared.IsNotFound(err):
		fresh, nerr := progress.NewUserProgress(userID, s.clock.Now())
		if nerr != nil {
			return nil, false, nerr
		}
		e.record = fresh
		return fresh, true, nil

	default:
		return nil, false, err
	}
}

// errNoChange is returned by a mutation to signal that the record was left
// untouched and the persist step can be skipped.
var errNoChange = errors.New("ledger: no change")

// mutation applies one logical operation to a record. It must be safe to
// reapply against freshly loaded state after a revision conflict. It returns
// the events describing what changed.
type mutation func(record *progress.UserProgress, now time.Time) ([]shared.Event, error)

// mutate runs one serialized read-modify-persist cycle for a user.
//
// On a revision conflict the authoritative record is reloaded and the
// mutation reapplied, a bounded number of times. On an unavailable store the
// in-memory state keeps the optimistic result, a persist-failed event fires,
// a background retry is scheduled, and the caller gets a retryable error.
func (s *Service) mutate(ctx context.Context, userID shared.UserID, op mutation) error {
	if userID.IsZero() {
		return shared.ErrInvalidUserID
	}

	e, err := s.entry(userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	base, fresh, err := s.loadLocked(ctx, e, userID)
	if err != nil {
		return err
	}
	if fresh {
		s.publish(ctx, shared.NewUserLoadedEvent(userID.String(), base.Level.Int(), base.TotalXP.Int64(), true))
	}

	for attempt := 0; ; attempt++ {
		now := s.clock.Now()
		work := base.Clone()

		events, err := op(work, now)
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			return err
		}
		work.UpdatedAt = now

		err = s.repo.Put(ctx, work, work.Revision)
		if err == nil {
			e.record = work
			e.dirty = false
			s.publishAll(ctx, events)
			return nil
		}

		if shared.IsConflict(err) {
			if attempt >= maxConflictRetries {
				return shared.ErrConflictUnresolved
			}
			reloaded, gerr := s.repo.Get(ctx, userID)
			if gerr != nil {
				return gerr
			}
			s.log.Warn("revision conflict, reapplying operation",
				logger.UserID(userID.String()),
				logger.Revision(reloaded.Revision.Int64()))
			base = reloaded
			e.record = reloaded
			continue
		}

		// Store unavailable. Keep the optimistic state visible, surface a
		// retryable error, and let a background retry reconcile the store.
		e.record = work
		e.dirty = true
		s.publishAll(ctx, events)
		s.publish(ctx, shared.NewPersistFailedEvent(userID.String(), work.Revision.Int64(), err.Error()))
		s.schedulePersistRetry(userID)
		return shared.WrapError("ledger", "Persist", shared.ErrServiceUnavailable,
			"progress saved locally, store write pending", err)
	}
}

// schedulePersistRetry launches a background goroutine that retries the
// pending write with exponential backoff until it lands or retries run out.
func (s *Service) schedulePersistRetry(userID shared.UserID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx := context.Background()

		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.flushPending(ctx, userID)
		})
		if err != nil {
			s.log.Error("background persist gave up",
				logger.UserID(userID.String()),
				logger.Err(err))
		}
	}()
}

// flushPending attempts to write a dirty record. A revision conflict here
// means another writer landed first; the authoritative state is adopted and
// the optimistic delta is dropped, which is logged as data loss.
func (s *Service) flushPending(ctx context.Context, userID shared.UserID) error {
	e, err := s.entry(userID)
	if err != nil {
		return retry.Permanent(err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty || e.record == nil {
		return nil
	}

	err = s.repo.Put(ctx, e.record, e.record.Revision)
	if err == nil {
		e.dirty = false
		s.log.Info("pending progress write flushed",
			logger.UserID(userID.String()),
			logger.Revision(e.record.Revision.Int64()))
		return nil
	}

	if shared.IsConflict(err) {
		reloaded, gerr := s.repo.Get(ctx, userID)
		if gerr == nil {
			s.log.Error("pending write lost to concurrent update, adopting stored state",
				logger.UserID(userID.String()),
				logger.Revision(reloaded.Revision.Int64()))
			e.record = reloaded
			e.dirty = false
			return nil
		}
		return retry.Retryable(gerr)
	}
	return retry.Retryable(err)
}

// publish sends one event without letting bus failures reach the ledger.
func (s *Service) publish(ctx context.Context, event shared.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}

// publishAll emits events in order.
func (s *Service) publishAll(ctx context.Context, events []shared.Event) {
	for _, event := range events {
		s.publish(ctx, event)
	}
}
