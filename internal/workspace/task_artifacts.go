package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteScript writes a task's action text to tasks/<name>/script and
// marks it executable.
func (w *Workspace) WriteScript(name, body string) (string, error) {
	dir, err := w.TaskDir(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "script")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", fmt.Errorf("workspace: writing script for task %q: %w", name, err)
	}
	return path, nil
}

// TaskStdout opens (creating if needed) tasks/<name>/stdout for writing.
func (w *Workspace) TaskStdout(name string) (*os.File, error) {
	return w.openTaskFile(name, "stdout")
}

// TaskStderr opens (creating if needed) tasks/<name>/stderr for writing.
func (w *Workspace) TaskStderr(name string) (*os.File, error) {
	return w.openTaskFile(name, "stderr")
}

func (w *Workspace) openTaskFile(name, file string) (*os.File, error) {
	dir, err := w.TaskDir(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("workspace: opening %s for task %q: %w", file, name, err)
	}
	return f, nil
}

// WriteTaskStatus writes a status word ("running" or a terminal status)
// to tasks/<name>/status. A write failure is returned to the caller and
// does not abort peers; the scheduler logs it and carries on.
func (w *Workspace) WriteTaskStatus(name, status string) error {
	dir, err := w.TaskDir(name)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "status"), []byte(status+"\n"), 0o644)
}

// WriteTaskExitCode writes the exit code as an ASCII integer plus a
// trailing newline to tasks/<name>/exit_code.
func (w *Workspace) WriteTaskExitCode(name string, code int) error {
	dir, err := w.TaskDir(name)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "exit_code"), []byte(strconv.Itoa(code)+"\n"), 0o644)
}
