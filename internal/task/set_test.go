package task

import "testing"

func mk(name string, deps ...string) *Task {
	return New(name, deps, nil, nil, nil, nil, "echo "+name)
}

func TestNewSet_Linear(t *testing.T) {
	set, err := NewSet([]*Task{mk("a"), mk("b", "a"), mk("c", "b")})
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}
	if got := set.Dependents("a"); len(got) != 1 || got[0] != "b" {
		t.Errorf("Dependents(a) = %v, want [b]", got)
	}
}

func TestNewSet_DuplicateName(t *testing.T) {
	_, err := NewSet([]*Task{mk("a"), mk("a")})
	if err == nil {
		t.Fatal("NewSet() with duplicate name: want error, got nil")
	}
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("error is not *ConfigError: %v", err)
	}
}

func TestNewSet_UnknownDependency(t *testing.T) {
	_, err := NewSet([]*Task{mk("a", "ghost")})
	if err == nil {
		t.Fatal("NewSet() with unknown dependency: want error, got nil")
	}
}

func TestNewSet_Cycle(t *testing.T) {
	_, err := NewSet([]*Task{mk("a", "c"), mk("b", "a"), mk("c", "b")})
	if err == nil {
		t.Fatal("NewSet() with cycle: want error, got nil")
	}
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("error is not *ConfigError: %v", err)
	}
	if len(cfgErr.Tasks) == 0 {
		t.Fatal("cycle error names no tasks")
	}
}

func TestNewSet_Diamond(t *testing.T) {
	set, err := NewSet([]*Task{
		mk("a"),
		mk("b", "a"),
		mk("c", "a"),
		mk("d", "b", "c"),
	})
	if err != nil {
		t.Fatalf("NewSet() error: %v", err)
	}
	deps := set.Dependents("a")
	if len(deps) != 2 {
		t.Fatalf("Dependents(a) = %v, want 2 entries", deps)
	}
}

func asConfigError(err error, target **ConfigError) bool {
	ce, ok := err.(*ConfigError)
	if ok {
		*target = ce
	}
	return ok
}
