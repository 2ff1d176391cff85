package runboard

import "testing"

// TestRunMainBound verifies that importing the package binds RunMain
// without starting a server or producing any other side effect.
func TestRunMainBound(t *testing.T) {
	if RunMain == nil {
		t.Fatal("RunMain is nil; expected binding to the internal entry point")
	}
}

func TestRunMainSubstitutable(t *testing.T) {
	orig := RunMain
	defer func() { RunMain = orig }()

	calls := 0
	RunMain = func() int {
		calls++
		return 42
	}

	got := RunMain()
	if calls != 1 {
		t.Errorf("RunMain invoked %d times, want 1", calls)
	}
	if got != 42 {
		t.Errorf("RunMain() = %d, want the stub's return value 42", got)
	}
}
