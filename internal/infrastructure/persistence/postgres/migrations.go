package postgres

// Migrations returns the embedded migration set in version order.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_user_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}

// The progress record is stored whole as JSONB. The revision column is
// duplicated out of the document so the conditional update can compare it
// without parsing JSON.
const migration001Up = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id        TEXT PRIMARY KEY,
	document       JSONB NOT NULL,
	revision       BIGINT NOT NULL DEFAULT 0,
	schema_version INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_progress_updated_at
	ON user_progress (updated_at);

CREATE INDEX IF NOT EXISTS idx_user_progress_total_xp
	ON user_progress (((document->>'total_xp')::BIGINT) DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS user_progress;
`
