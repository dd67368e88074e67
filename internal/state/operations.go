package state

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// UpsertProject inserts a new project row or, if hash already exists,
// bumps last_seen and run_count. Returns the project's row id.
func (s *Store) UpsertProject(ctx context.Context, hash, ottofilePath string, now int64) (int64, error) {
	var id int64
	err := s.withConn(ctx, "upsert-project", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE hash = ?`, hash)
		scanErr := row.Scan(&id)
		switch {
		case scanErr == sql.ErrNoRows:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO projects (hash, ottofile_path, first_seen, last_seen, run_count)
				 VALUES (?, ?, ?, ?, 1)`,
				hash, ottofilePath, now, now)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		case scanErr != nil:
			return scanErr
		default:
			_, err := tx.ExecContext(ctx,
				`UPDATE projects SET last_seen = ?, run_count = run_count + 1 WHERE id = ?`,
				now, id)
			return err
		}
	})
	return id, err
}

// InsertRun creates a Run row in status running and returns its row id
// and a generated external id (for log correlation only).
func (s *Store) InsertRun(ctx context.Context, r Run) (id int64, externalID string, err error) {
	externalID = uuid.NewString()
	err = s.withConn(ctx, "insert-run", func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO runs (project_id, timestamp, external_id, status, ottofile_path, cwd, user, hostname, args)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ProjectID, r.Timestamp, externalID, string(r.Status), r.OttofilePath, r.Cwd, r.User, r.Hostname, r.Args)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	return id, externalID, err
}

// UpdateRunStatus stamps a run's terminal status, duration, size, and end
// time. Called exactly once per run, when the scheduler has drained.
func (s *Store) UpdateRunStatus(ctx context.Context, runID int64, status RunStatus, durationSeconds float64, sizeBytes, endedAt int64) error {
	return s.withConn(ctx, "update-run-status", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, duration_seconds = ?, size_bytes = ?, ended_at = ? WHERE id = ?`,
			string(status), durationSeconds, sizeBytes, endedAt, runID)
		return err
	})
}

// InsertTask inserts a TaskRun row in status pending and returns its
// row id.
func (s *Store) InsertTask(ctx context.Context, t TaskRun) (int64, error) {
	var id int64
	err := s.withConn(ctx, "insert-task", func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO tasks (run_id, name, status, script_hash, script_path)
			 VALUES (?, ?, ?, ?, ?)`,
			t.RunID, t.Name, string(t.Status), t.ScriptHash, t.ScriptPath)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	return id, err
}

// UpdateTaskStatus transitions a task row, recording its terminal data
// when status is a terminal value. Zero-valued started/ended/exitCode/path
// arguments are written as-is — callers pass the fields relevant to the
// transition (e.g. a pending->running transition sets startedAt only). An
// empty scriptPath leaves the column untouched rather than clobbering a
// value recorded by an earlier transition on the same row.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID int64, status TaskStatus, exitCode, startedAt, endedAt int64, durationSeconds float64, scriptPath, stdoutPath, stderrPath string) error {
	return s.withConn(ctx, "update-task-status", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, exit_code = ?, started_at = ?, ended_at = ?,
			 duration_seconds = ?, script_path = COALESCE(NULLIF(?, ''), script_path),
			 stdout_path = ?, stderr_path = ? WHERE id = ?`,
			string(status), exitCode, startedAt, endedAt, durationSeconds, scriptPath, stdoutPath, stderrPath, taskID)
		return err
	})
}

// RunByTimestamp reads back a Run row by its timestamp (the public run
// identity), for history/inspection tooling and round-trip tests.
func (s *Store) RunByTimestamp(ctx context.Context, timestamp int64) (Run, error) {
	var r Run
	err := s.withConn(ctx, "run-by-timestamp", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, project_id, timestamp, external_id, status, COALESCE(duration_seconds, 0),
			        COALESCE(size_bytes, 0), ottofile_path, cwd, user, hostname, args, COALESCE(ended_at, 0)
			 FROM runs WHERE timestamp = ?`, timestamp)
		var status string
		if err := row.Scan(&r.ID, &r.ProjectID, &r.Timestamp, &r.ExternalID, &status, &r.DurationSeconds,
			&r.SizeBytes, &r.OttofilePath, &r.Cwd, &r.User, &r.Hostname, &r.Args, &r.EndedAt); err != nil {
			return err
		}
		r.Status = RunStatus(status)
		return nil
	})
	return r, err
}

// TasksByRun reads back every TaskRun row for a given run id, ordered by
// insertion (id ascending).
func (s *Store) TasksByRun(ctx context.Context, runID int64) ([]TaskRun, error) {
	var out []TaskRun
	err := s.withConn(ctx, "tasks-by-run", func(tx *sql.Tx) error {
		rows, queryErr := tx.QueryContext(ctx,
			`SELECT id, run_id, name, status, COALESCE(script_hash, ''), COALESCE(exit_code, 0),
			        COALESCE(started_at, 0), COALESCE(ended_at, 0), COALESCE(duration_seconds, 0),
			        COALESCE(stdout_path, ''), COALESCE(stderr_path, ''), COALESCE(script_path, '')
			 FROM tasks WHERE run_id = ? ORDER BY id ASC`, runID)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var t TaskRun
			var status string
			if err := rows.Scan(&t.ID, &t.RunID, &t.Name, &status, &t.ScriptHash, &t.ExitCode,
				&t.StartedAt, &t.EndedAt, &t.DurationSeconds, &t.StdoutPath, &t.StderrPath, &t.ScriptPath); err != nil {
				return err
			}
			t.Status = TaskStatus(status)
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}
