package workspace

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestInitIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)

	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("second Init() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(w.RunDir(), "tasks")); err != nil {
		t.Fatalf("tasks dir missing: %v", err)
	}
}

func TestTaskDirCreatesOnDemand(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	dir, err := w.TaskDir("build")
	if err != nil {
		t.Fatalf("TaskDir() error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("TaskDir() did not create a directory: %v", err)
	}

	dir2, err := w.TaskDir("build")
	if err != nil {
		t.Fatalf("TaskDir() second call error: %v", err)
	}
	if dir != dir2 {
		t.Errorf("TaskDir() not stable across calls: %q != %q", dir, dir2)
	}
}

func TestExecutionContextRoundTrip(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	ctx := ExecutionContext{
		Ottofile: "/proj/otto.yml",
		Hash:     "abc12345",
		Started:  1700000000,
		Cwd:      "/proj",
		User:     "alice",
		Hostname: "devbox",
		Args:     []string{"build", "test"},
	}
	if err := w.SaveExecutionContext(ctx); err != nil {
		t.Fatalf("SaveExecutionContext() error: %v", err)
	}

	got, err := LoadExecutionContext(w.RunDir())
	if err != nil {
		t.Fatalf("LoadExecutionContext() error: %v", err)
	}
	if !reflect.DeepEqual(got, ctx) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, ctx)
	}
}

func TestExecutionContextToleratesMissingOptionalFields(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	minimal := []byte("hash: abc12345\ntimestamp: 1700000000\n")
	if err := os.WriteFile(filepath.Join(w.RunDir(), "run.yaml"), minimal, 0o644); err != nil {
		t.Fatalf("writing minimal run.yaml: %v", err)
	}

	ctx, err := LoadExecutionContext(w.RunDir())
	if err != nil {
		t.Fatalf("LoadExecutionContext() error on minimal doc: %v", err)
	}
	if ctx.Hash != "abc12345" || ctx.Started != 1700000000 {
		t.Errorf("unexpected parse of minimal doc: %+v", ctx)
	}
	if ctx.Ottofile != "" || ctx.User != "" {
		t.Errorf("expected empty optional fields, got %+v", ctx)
	}
}

func TestWriteScriptIsExecutable(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	path, err := w.WriteScript("build", "echo hi")
	if err != nil {
		t.Fatalf("WriteScript() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat script: %v", err)
	}
	if info.Mode()&0o100 == 0 {
		t.Errorf("script not executable: mode %v", info.Mode())
	}
}

func TestFinalizeWritesStatus(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := w.Finalize("success"); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(w.RunDir(), "status"))
	if err != nil {
		t.Fatalf("reading status file: %v", err)
	}
	if string(data) != "success\n" {
		t.Errorf("status file = %q, want %q", data, "success\n")
	}
}

func TestNewDefaultHonorsWorkspaceRootOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("OTTO_HOME", root)

	w, err := NewDefault("abc12345", 1700000000)
	if err != nil {
		t.Fatalf("NewDefault() error: %v", err)
	}
	if got := filepath.Dir(filepath.Dir(w.RunDir())); got != root {
		t.Errorf("expected workspace rooted at %q, got run dir %q", root, w.RunDir())
	}
}

func TestNewExecutionContextFillsAmbientFields(t *testing.T) {
	t.Setenv("USER", "alice")
	t.Setenv("USERNAME", "")

	ctx := NewExecutionContext("abc12345", "/proj/otto.yml", 1700000000, []string{"build"})
	if ctx.Hash != "abc12345" || ctx.Ottofile != "/proj/otto.yml" || ctx.Started != 1700000000 {
		t.Fatalf("identity fields not carried through: %+v", ctx)
	}
	if ctx.User != "alice" {
		t.Errorf("expected user alice, got %q", ctx.User)
	}
	if ctx.Cwd == "" {
		t.Error("expected cwd to be populated")
	}
	if len(ctx.Args) != 1 || ctx.Args[0] != "build" {
		t.Errorf("args not carried through: %+v", ctx.Args)
	}
}

func TestSizeSumsTaskFiles(t *testing.T) {
	root := t.TempDir()
	w := New(root, "abc12345", 1700000000)
	if err := w.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if _, err := w.WriteScript("t", "echo hello world"); err != nil {
		t.Fatalf("WriteScript() error: %v", err)
	}

	size, err := w.Size()
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if size == 0 {
		t.Error("Size() = 0, want > 0")
	}
}
