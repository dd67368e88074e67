// Package workspace materializes one scheduler run on disk: the run
// directory, its per-task subdirectories, and the run-metadata document.
// The Workspace owns run-directory bytes exclusively; it persists no
// state anywhere else.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ottohq/otto/internal/ottoenv"
)

// Workspace is rooted at a caller-supplied directory and names its run
// directory as otto-<projectHash>/<timestamp>/.
type Workspace struct {
	root        string
	projectHash string
	timestamp   int64

	mu       sync.Mutex
	taskDirs map[string]string
}

// New constructs a Workspace. No I/O happens until Init is called.
func New(root, projectHash string, timestamp int64) *Workspace {
	return &Workspace{
		root:        root,
		projectHash: projectHash,
		timestamp:   timestamp,
		taskDirs:    make(map[string]string),
	}
}

// NewDefault constructs a Workspace rooted at the core's default workspace
// root: $OTTO_HOME if set, else the current working directory (see
// internal/ottoenv), so a caller that doesn't care where runs live on disk
// doesn't have to resolve that itself.
func NewDefault(projectHash string, timestamp int64) (*Workspace, error) {
	root, err := ottoenv.WorkspaceRoot()
	if err != nil {
		return nil, fmt.Errorf("workspace: resolving default workspace root: %w", err)
	}
	return New(root, projectHash, timestamp), nil
}

// RunDir returns the run directory path for this workspace.
func (w *Workspace) RunDir() string {
	return filepath.Join(w.root, fmt.Sprintf("otto-%s", w.projectHash), fmt.Sprintf("%d", w.timestamp))
}

func (w *Workspace) tasksDir() string {
	return filepath.Join(w.RunDir(), "tasks")
}

// Init creates the run directory and its tasks/ subdirectory, then
// fsyncs the parent so the directory entry itself is durable. Idempotent.
// Any I/O error here is fatal to the run per the spec's failure semantics.
func (w *Workspace) Init() error {
	if err := os.MkdirAll(w.tasksDir(), 0o755); err != nil {
		return fmt.Errorf("workspace: creating run directory: %w", err)
	}
	if err := fsyncDir(filepath.Dir(w.RunDir())); err != nil {
		return fmt.Errorf("workspace: fsyncing project directory: %w", err)
	}
	return nil
}

// TaskDir returns the per-task subdirectory for name, creating it on
// first access.
func (w *Workspace) TaskDir(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir, ok := w.taskDirs[name]; ok {
		return dir, nil
	}
	dir := filepath.Join(w.tasksDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: creating task directory %q: %w", name, err)
	}
	w.taskDirs[name] = dir
	return dir, nil
}

// fsyncDir opens dir and calls Sync on it, making directory-entry
// creation durable. Directory sync is unsupported on some platforms'
// virtual filesystems; both callers (Init and Finalize) return its error
// rather than ignoring it.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// Size walks the run directory and sums the size of every regular file,
// for the Run record's size_bytes field.
func (w *Workspace) Size() (int64, error) {
	var total int64
	err := filepath.Walk(w.RunDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("workspace: computing run size: %w", err)
	}
	return total, nil
}
