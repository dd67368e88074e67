package task

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		action string
		want   Class
	}{
		{"curl https://example.com", ClassNetworkBound},
		{"wget http://example.com/file", ClassNetworkBound},
		{"ssh host 'ls'", ClassNetworkBound},
		{"gcc -c file.c", ClassCPUBound},
		{"cmake --build .", ClassCPUBound},
		{"cargo build --release", ClassCPUBound},
		{"cat file.txt", ClassIOBound},
		{"echo hello >> out", ClassIOBound},
	}
	for _, c := range cases {
		if got := Classify(c.action); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.action, got, c.want)
		}
	}
}

func TestEffectiveTimeout(t *testing.T) {
	tsk := New("t", nil, nil, nil, nil, nil, "echo hi")
	if got := tsk.EffectiveTimeout(); got != DefaultIOTimeout {
		t.Errorf("EffectiveTimeout() = %v, want %v", got, DefaultIOTimeout)
	}

	tsk.Timeout = 5
	if got := tsk.EffectiveTimeout(); got != 5 {
		t.Errorf("EffectiveTimeout() = %v, want 5", got)
	}
}

func TestScriptHashDeterministic(t *testing.T) {
	h1 := ScriptHash("echo hello")
	h2 := ScriptHash("echo hello")
	if h1 != h2 {
		t.Fatalf("ScriptHash not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("ScriptHash length = %d, want 16", len(h1))
	}
	if ScriptHash("echo goodbye") == h1 {
		t.Fatalf("ScriptHash collided for different actions")
	}
}

func TestFoldedEnv(t *testing.T) {
	tsk := New("t", nil, nil, nil,
		map[string]string{"FOO": "bar"},
		map[string]string{"region": "us-east"},
		"echo $FOO")

	env := FoldedEnv(tsk)
	want := map[string]bool{"FOO=bar": true, "PARAM_REGION=us-east": true}
	if len(env) != 2 {
		t.Fatalf("FoldedEnv() len = %d, want 2", len(env))
	}
	for _, kv := range env {
		if !want[kv] {
			t.Errorf("FoldedEnv() produced unexpected entry %q", kv)
		}
	}
}
