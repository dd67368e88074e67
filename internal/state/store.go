// Package state durably indexes projects, runs, and tasks in an embedded
// relational database with write-ahead logging. It is the Scheduler's
// only persistent collaborator — the Scheduler itself owns no rows.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ottohq/otto/internal/ottoenv"
)

// Store is a process-wide handle to the Otto database. All access funnels
// through a single mutex-guarded entry point so an external observer of
// the database sees a legal interleaving consistent with the dependency
// graph, per the scheduler's ordering guarantees.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (creating if necessary) the database at path, enables WAL
// journaling and foreign keys, and migrates the schema to SchemaVersion.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, persistErr("open", fmt.Errorf("creating database directory: %w", err))
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, persistErr("open", err)
	}
	// A single shared connection matches the spec's "process-wide,
	// mutex-guarded" model: one SQLite connection serializes writes on
	// its own, and the Store's mutex additionally serializes whole
	// operations so multi-statement transactions never interleave.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, persistErr("migrate", err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenDefault opens the database at the core's default path: $OTTO_DB_PATH
// if set, else $HOME/.otto/otto.db (see internal/ottoenv), so a caller that
// doesn't care where the database lives doesn't have to resolve it itself.
func OpenDefault(ctx context.Context) (*Store, error) {
	path, err := ottoenv.DBPath()
	if err != nil {
		return nil, persistErr("open", fmt.Errorf("resolving default database path: %w", err))
	}
	return Open(ctx, path)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path this Store was opened with.
func (s *Store) Path() string { return s.path }

// withConn runs fn with exclusive access to the database, wrapped in a
// transaction. This is the single entry point every operation below
// goes through.
func (s *Store) withConn(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return persistErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr(op, err)
	}
	return nil
}

// HealthCheck verifies the database connection is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.withConn(ctx, "health-check", func(tx *sql.Tx) error {
		var one int
		return tx.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
	})
}

// Counts reports the number of rows in each table, for diagnostics.
type Counts struct {
	Projects int64
	Runs     int64
	Tasks    int64
}

// Counts returns row counts across all tables.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.withConn(ctx, "counts", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&c.Projects); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&c.Runs); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&c.Tasks)
	})
	return c, err
}
