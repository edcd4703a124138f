package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/innerlight-app/innerlight-progress/internal/domain/progress"
	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

// ProgressRepository persists user progress records as JSONB documents with
// revision-checked writes. It implements progress.Repository.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a repository over a connection pool.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID shared.UserID) (*progress.UserProgress, error) {
	var (
		doc      []byte
		revision int64
	)
	err := r.conn.QueryRow(ctx,
		"SELECT document, revision FROM user_progress WHERE user_id = $1",
		userID.String(),
	).Scan(&doc, &revision)

	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, shared.WrapError("persistence", "Get", shared.ErrServiceUnavailable,
			"document store read failed", err)
	}

	var record progress.UserProgress
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, shared.WrapError("persistence", "Get", shared.ErrInvalidState,
			fmt.Sprintf("corrupt progress document for user %s", userID), err)
	}

	// The column is authoritative: it is what the conditional update checks.
	record.Revision = shared.Revision(revision)
	return &record, nil
}

// Put implements progress.Repository. Revision zero is the only expectation
// that may create the row; any other expectation is a conditional update on
// the stored revision. A missing row with a non-zero expectation is a
// conflict, matching the in-memory repository.
func (r *ProgressRepository) Put(ctx context.Context, record *progress.UserProgress, expectedRevision shared.Revision) error {
	next := expectedRevision.Next()
	record.Revision = next
	doc, err := json.Marshal(record)
	if err != nil {
		record.Revision = expectedRevision
		return shared.WrapError("persistence", "Put", shared.ErrInvalidState,
			"progress document serialization failed", err)
	}

	var tag pgconn.CommandTag
	if expectedRevision.Int64() == 0 {
		tag, err = r.conn.Exec(ctx, `
			INSERT INTO user_progress (user_id, document, revision, schema_version, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET document = EXCLUDED.document,
			    revision = EXCLUDED.revision,
			    schema_version = EXCLUDED.schema_version,
			    updated_at = NOW()
			WHERE user_progress.revision = 0`,
			record.UserID.String(), doc, next.Int64(), record.SchemaVersion)
	} else {
		tag, err = r.conn.Exec(ctx, `
			UPDATE user_progress
			SET document = $2,
			    revision = $3,
			    schema_version = $4,
			    updated_at = NOW()
			WHERE user_id = $1 AND revision = $5`,
			record.UserID.String(), doc, next.Int64(), record.SchemaVersion, expectedRevision.Int64())
	}
	if err != nil {
		record.Revision = expectedRevision
		if IsUniqueViolation(err) {
			// Concurrent first write for the same user.
			return shared.ErrRevisionConflict
		}
		return shared.WrapError("persistence", "Put", shared.ErrServiceUnavailable,
			"document store write failed", err)
	}

	if tag.RowsAffected() == 0 {
		record.Revision = expectedRevision
		return shared.ErrRevisionConflict
	}
	return nil
}

// ListUserIDs implements progress.Repository.
func (r *ProgressRepository) ListUserIDs(ctx context.Context) ([]shared.UserID, error) {
	rows, err := r.conn.Query(ctx, "SELECT user_id FROM user_progress ORDER BY user_id")
	if err != nil {
		return nil, shared.WrapError("persistence", "ListUserIDs", shared.ErrServiceUnavailable,
			"document store read failed", err)
	}
	defer rows.Close()

	var ids []shared.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("persistence", "ListUserIDs", shared.ErrServiceUnavailable,
				"scanning user ID failed", err)
		}
		ids = append(ids, shared.UserID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("persistence", "ListUserIDs", shared.ErrServiceUnavailable,
			"document store read failed", err)
	}
	return ids, nil
}
