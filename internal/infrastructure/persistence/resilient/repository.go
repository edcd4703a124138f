// Package resilient decorates a progress repository with retries and a
// circuit breaker. The ledger stays free of transport failure policy; this
// wrapper owns it.
package resilient

import (
	"context"
	"errors"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
	"github.com/innerlight-app/innerlight-progress/pkg/circuitbreaker"
	"github.com/innerlight-app/innerlight-progress/pkg/logger"
	"github.com/innerlight-app/innerlight-progress/pkg/retry"
)

// Repository wraps an inner progress.Repository. Reads retry on transient
// failures; writes go through once per call, because the ledger already
// owns write retry semantics (conflict reapply, background flush). The
// breaker guards both directions.
type Repository struct {
	inner   progress.Repository
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// New creates a resilient repository around inner.
func New(inner progress.Repository, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("resilient_repo"))

	breaker := circuitbreaker.DocumentStoreBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	})

	return &Repository{
		inner:   inner,
		retrier: retry.PersistenceRetrier(),
		breaker: breaker,
		log:     log,
	}
}

// Get implements progress.Repository.
func (r *Repository) Get(ctx context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	var record *progress.UserProgress
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			record, err = r.inner.Get(ctx, userID)
			return classify(err)
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	return record, nil
}

// Put implements progress.Repository.
func (r *Repository) Put(ctx context.Context, record *progress.UserProgress, expectedRevision shared.Revision) error {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.inner.Put(ctx, record, expectedRevision)
	})
	return translate(err)
}

// ListUserIDs implements progress.Repository.
func (r *Repository) ListUserIDs(ctx context.Context) ([]shared.UserID, error) {
	var ids []shared.UserID
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			ids, err = r.inner.ListUserIDs(ctx)
			return classify(err)
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

// classify marks errors for the retrier: not-found and conflicts are
// permanent outcomes, transport failures are worth retrying.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if shared.IsNotFound(err) || shared.IsConflict(err) {
		return retry.Permanent(err)
	}
	return retry.Retryable(err)
}

// translate maps an open breaker onto the domain's unavailable error so
// callers never see infrastructure error types.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("persistence", "Execute", shared.ErrServiceUnavailable,
			"document store circuit open", err)
	}
	return err
}
