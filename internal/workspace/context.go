package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ottohq/otto/internal/ottoenv"
)

// ExecutionContext is the run-metadata document persisted as run.yaml.
// Unknown keys on read are ignored (the yaml.v3 decoder's default
// behaviour); missing optional fields are tolerated because every
// optional field below carries omitempty.
type ExecutionContext struct {
	Ottofile string   `yaml:"ottofile,omitempty"`
	Hash     string   `yaml:"hash"`
	Started  int64    `yaml:"timestamp"`
	Cwd      string   `yaml:"cwd,omitempty"`
	User     string   `yaml:"user,omitempty"`
	Hostname string   `yaml:"hostname,omitempty"`
	Args     []string `yaml:"args,omitempty"`
}

// NewExecutionContext builds the metadata document for a new run, filling
// Cwd/User/Hostname from the core's ambient environment (internal/ottoenv)
// rather than leaving every caller to rediscover them.
func NewExecutionContext(hash, ottofile string, started int64, args []string) ExecutionContext {
	cwd, _ := os.Getwd()
	return ExecutionContext{
		Ottofile: ottofile,
		Hash:     hash,
		Started:  started,
		Cwd:      cwd,
		User:     ottoenv.User(),
		Hostname: ottoenv.Hostname(),
		Args:     args,
	}
}

// SaveExecutionContext serializes ctx to run.yaml atomically: a temp
// file is written in the run directory, then renamed over the target.
func (w *Workspace) SaveExecutionContext(ctx ExecutionContext) error {
	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("workspace: marshalling execution context: %w", err)
	}
	return writeFileAtomic(filepath.Join(w.RunDir(), "run.yaml"), data, 0o644)
}

// LoadExecutionContext reads and parses run.yaml from dir.
func LoadExecutionContext(dir string) (ExecutionContext, error) {
	var ctx ExecutionContext
	data, err := os.ReadFile(filepath.Join(dir, "run.yaml"))
	if err != nil {
		return ctx, fmt.Errorf("workspace: reading run.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return ctx, fmt.Errorf("workspace: parsing run.yaml: %w", err)
	}
	return ctx, nil
}

// Finalize writes the terminal status word for the run and fsyncs the
// run directory. Called once, after the scheduler has drained.
func (w *Workspace) Finalize(status string) error {
	path := filepath.Join(w.RunDir(), "status")
	if err := writeFileAtomic(path, []byte(status+"\n"), 0o644); err != nil {
		return fmt.Errorf("workspace: writing run status: %w", err)
	}
	return fsyncDir(w.RunDir())
}

// writeFileAtomic writes data to a temp file beside path, then renames
// it over path. Prevents a crash mid-write from corrupting the target.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
