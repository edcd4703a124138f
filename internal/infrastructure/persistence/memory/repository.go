// Package memory provides an in-memory progress repository. It backs tests
// and local development, and honors the same revision contract as the
// document store.
package memory

import (
	"context"
	"sync"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// Repository stores progress records in a map guarded by a mutex.
type Repository struct {
	mu      sync.RWMutex
	records map[shared.UserID]*progress.UserProgress

	failPuts bool
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{records: make(map[shared.UserID]*progress.UserProgress)}
}

// Get implements progress.Repository.
func (r *Repository) Get(_ context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return record.Clone(), nil
}

// Put implements progress.Repository. The write succeeds only when the
// stored revision matches expectedRevision; a missing record matches
// revision zero. On success both the stored copy and the passed record carry
// expectedRevision+1.
func (r *Repository) Put(_ context.Context, record *progress.UserProgress, expectedRevision shared.Revision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failPuts {
		return shared.ErrPersistenceUnavailable
	}

	var stored shared.Revision
	if existing, ok := r.records[record.UserID]; ok {
		stored = existing.Revision
	}
	if stored != expectedRevision {
		return shared.WrapError("persistence", "Put", shared.ErrConcurrentModification,
			"stored revision does not match expected revision", nil)
	}

	record.Revision = expectedRevision.Next()
	r.records[record.UserID] = record.Clone()
	return nil
}

// ListUserIDs implements progress.Repository.
func (r *Repository) ListUserIDs(_ context.Context) ([]shared.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]shared.UserID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	return ids, nil
}

// SetFailPuts makes every Put report an unavailable store. Tests use it to
// exercise the optimistic-update path.
func (r *Repository) SetFailPuts(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPuts = fail
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
