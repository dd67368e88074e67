package state

import (
	"context"
	"database/sql"
	"time"
)

// SchemaVersion is the compiled-in schema version. Migrations are applied
// up to this version on every Open.
const SchemaVersion = 1

// migrationStep is one forward migration. Steps run inside a single
// transaction, in order, and are idempotent (CREATE TABLE IF NOT EXISTS)
// so re-running one is harmless — downgrade is never supported.
type migrationStep struct {
	version int
	stmts   []string
}

var migrations = []migrationStep{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY,
				hash TEXT NOT NULL UNIQUE,
				ottofile_path TEXT,
				first_seen INTEGER NOT NULL,
				last_seen INTEGER NOT NULL,
				run_count INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS runs (
				id INTEGER PRIMARY KEY,
				project_id INTEGER NOT NULL,
				timestamp INTEGER NOT NULL UNIQUE,
				external_id TEXT,
				status TEXT NOT NULL,
				duration_seconds REAL,
				size_bytes INTEGER,
				ottofile_path TEXT,
				cwd TEXT,
				user TEXT,
				hostname TEXT,
				args TEXT,
				ended_at INTEGER,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id INTEGER PRIMARY KEY,
				run_id INTEGER NOT NULL,
				name TEXT NOT NULL,
				status TEXT NOT NULL,
				script_hash TEXT,
				exit_code INTEGER,
				started_at INTEGER,
				ended_at INTEGER,
				duration_seconds REAL,
				stdout_path TEXT,
				stderr_path TEXT,
				script_path TEXT,
				FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_run ON tasks(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_name ON tasks(name)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		},
	},
}

// migrate brings the database up to SchemaVersion. Re-opening a database
// already at SchemaVersion is a no-op: it reads the current version and
// returns immediately without touching any table.
func migrate(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, step := range migrations {
		if step.version <= current {
			continue
		}
		for _, stmt := range step.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			step.version, time.Now().Unix()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// currentSchemaVersion returns the highest applied version, or 0 if the
// schema_version table doesn't exist yet.
func currentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}

	var version sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
