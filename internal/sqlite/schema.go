package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; the database's user_version records how
// many have run. Append new steps, never edit shipped ones.
var migrations = []string{
	// 1: included posts and firehose cursors.
	`
	CREATE TABLE IF NOT EXISTS posts (
	  uri               TEXT PRIMARY KEY,
	  cid               TEXT NOT NULL,
	  author_did        TEXT NOT NULL,
	  author_label      TEXT,
	  indexed_at        INTEGER NOT NULL,
	  inserted_at_epoch INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_indexed_at
	ON posts(indexed_at DESC);

	CREATE INDEX IF NOT EXISTS idx_posts_author_did
	ON posts(author_did);

	CREATE TABLE IF NOT EXISTS cursors (
	  service      TEXT PRIMARY KEY,
	  cursor_value INTEGER NOT NULL,
	  updated_at   INTEGER NOT NULL
	);
	`,
}

// schemaVersion is the version a fully migrated feed store reports.
var schemaVersion = len(migrations)

// migrate brings the feed store up to schemaVersion. Each step and its
// version bump commit together, so a failed step leaves the previous version.
func migrate(ctx context.Context, db *sql.DB) error {
	var applied int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if applied > schemaVersion {
		return fmt.Errorf("feed store schema version %d is newer than supported %d", applied, schemaVersion)
	}

	for step := applied; step < schemaVersion; step++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", step+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[step]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", step+1, err)
		}
		// PRAGMA arguments cannot be bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", step+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", step+1, err)
		}
	}
	return nil
}
