package degraded

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFibDelays(t *testing.T) {
	got := fibDelays(time.Minute, 13*time.Minute)
	want := []time.Duration{
		1 * time.Minute, 2 * time.Minute, 3 * time.Minute,
		5 * time.Minute, 8 * time.Minute, 13 * time.Minute,
	}
	if len(got) != len(want) {
		t.Fatalf("fibDelays() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fibDelays()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRunRecovery_StopsWhenValidatePasses(t *testing.T) {
	ClearRecoveryOverrides()
	t.Cleanup(ClearRecoveryOverrides)

	var attempts atomic.Int32
	validate := func(ctx context.Context) error {
		if attempts.Add(1) >= 2 {
			return nil
		}
		return errors.New("still down")
	}

	exhausted := false
	RunRecovery(context.Background(), validate, time.Millisecond, 20*time.Millisecond, func() { exhausted = true })
	if got := attempts.Load(); got != 2 {
		t.Errorf("validate attempts = %d, want 2", got)
	}
	if exhausted {
		t.Error("onExhausted called despite successful recovery")
	}
}

func TestRunRecovery_ExhaustsAndCallsCallback(t *testing.T) {
	ClearRecoveryOverrides()
	t.Cleanup(ClearRecoveryOverrides)

	validate := func(ctx context.Context) error { return errors.New("still down") }
	exhausted := false
	RunRecovery(context.Background(), validate, time.Millisecond, 10*time.Millisecond, func() { exhausted = true })
	if !exhausted {
		t.Error("onExhausted not called after all attempts failed")
	}
}

func TestRunRecovery_DisabledSkipsEntirely(t *testing.T) {
	ClearRecoveryOverrides()
	t.Cleanup(ClearRecoveryOverrides)
	SetRecoveryDisabled(true)

	called := false
	RunRecovery(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}, time.Millisecond, 10*time.Millisecond, func() {})
	if called {
		t.Error("validate called while recovery disabled")
	}
}

func TestRunRecovery_RespectsContextCancellation(t *testing.T) {
	ClearRecoveryOverrides()
	t.Cleanup(ClearRecoveryOverrides)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	RunRecovery(ctx, func(ctx context.Context) error {
		called = true
		return nil
	}, time.Hour, 2*time.Hour, func() {})
	if called {
		t.Error("validate called after context cancelled")
	}
}

func TestGetAndAdvanceNextRecoveryDelay(t *testing.T) {
	ClearRecoveryOverrides()
	t.Cleanup(ClearRecoveryOverrides)

	d, ok := GetAndAdvanceNextRecoveryDelay(time.Minute, 3*time.Minute)
	if !ok || d != time.Minute {
		t.Errorf("first delay = (%v, %v), want (1m, true)", d, ok)
	}
	d, ok = GetAndAdvanceNextRecoveryDelay(time.Minute, 3*time.Minute)
	if !ok || d != 2*time.Minute {
		t.Errorf("second delay = (%v, %v), want (2m, true)", d, ok)
	}
	d, ok = GetAndAdvanceNextRecoveryDelay(time.Minute, 3*time.Minute)
	if !ok || d != 3*time.Minute {
		t.Errorf("third delay = (%v, %v), want (3m, true)", d, ok)
	}
	_, ok = GetAndAdvanceNextRecoveryDelay(time.Minute, 3*time.Minute)
	if ok {
		t.Error("fourth delay ok = true, want false (sequence exhausted)")
	}
}
