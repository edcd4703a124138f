package progress

import (
	"context"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// Repository is the persistence gateway for user progress records.
// Implementations live in the infrastructure layer.
type Repository interface {
	// Get loads the record for a user. Returns an error matching
	// shared.ErrNotFound when the user has no record yet.
	Get(ctx context.Context, userID shared.UserID) (*UserProgress, error)

	// Put writes the record, expecting the stored revision to equal
	// expectedRevision. On success the record's Revision is advanced to
	// expectedRevision+1 both in the store and on the passed record.
	// Returns an error matching shared.ErrConcurrentModification when the
	// stored revision differs.
	Put(ctx context.Context, record *UserProgress, expectedRevision shared.Revision) error

	// ListUserIDs returns the IDs of every stored record. Used by
	// background jobs (streak lapse detection, leaderboard rebuild).
	ListUserIDs(ctx context.Context) ([]shared.UserID, error)
}
