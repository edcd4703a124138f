package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

func newRecord(t *testing.T, userID shared.UserID) *progress.UserProgress {
	t.Helper()
	record, err := progress.NewUserProgress(userID, time.Now().UTC())
	require.NoError(t, err)
	return record
}

func TestGetMissingRecord(t *testing.T) {
	repo := NewRepository()

	_, err := repo.Get(context.Background(), "nobody")
	assert.True(t, shared.IsNotFound(err))
}

func TestPutAdvancesRevision(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	record := newRecord(t, "user-1")

	require.NoError(t, repo.Put(ctx, record, 0))
	assert.Equal(t, shared.Revision(1), record.Revision)

	loaded, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.Revision(1), loaded.Revision)
}

func TestPutRejectsStaleRevision(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	first := newRecord(t, "user-1")
	require.NoError(t, repo.Put(ctx, first, 0))

	stale := newRecord(t, "user-1")
	err := repo.Put(ctx, stale, 0)
	assert.True(t, shared.IsConflict(err))
}

func TestPutRejectsNonZeroRevisionForMissingRecord(t *testing.T) {
	// Only revision zero may create a row. A non-zero expectation against
	// a missing record means the caller raced a delete or holds state from
	// another store, and must reload.
	repo := NewRepository()

	record := newRecord(t, "user-1")
	err := repo.Put(context.Background(), record, 3)
	assert.True(t, shared.IsConflict(err))
}

func TestPutStoresACopy(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	record := newRecord(t, "user-1")
	require.NoError(t, repo.Put(ctx, record, 0))

	// Mutating the caller's record after Put must not alter the store.
	record.ApplyXP(500)

	loaded, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(0), loaded.TotalXP)
}

func TestListUserIDs(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, newRecord(t, "a"), 0))
	require.NoError(t, repo.Put(ctx, newRecord(t, "b"), 0))

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []shared.UserID{"a", "b"}, ids)
}
