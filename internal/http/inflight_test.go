package http

import (
	"context"
	"testing"
	"time"
)

func TestInFlightTracker_Counting(t *testing.T) {
	tr := &InFlightTracker{}
	if tr.Count() != 0 {
		t.Fatalf("initial count = %d, want 0", tr.Count())
	}
	tr.Increment()
	tr.Increment()
	if tr.Count() != 2 {
		t.Errorf("count after two increments = %d, want 2", tr.Count())
	}
	tr.Decrement()
	if tr.Count() != 1 {
		t.Errorf("count after decrement = %d, want 1", tr.Count())
	}
}

func TestWaitForZero_ReturnsWhenDrained(t *testing.T) {
	tr := &InFlightTracker{}
	tr.Increment()

	go func() {
		time.Sleep(30 * time.Millisecond)
		tr.Decrement()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.WaitForZero(ctx, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForZero() = %v, want nil", err)
	}
}

func TestWaitForZero_ContextCancelled(t *testing.T) {
	tr := &InFlightTracker{}
	tr.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := tr.WaitForZero(ctx, 5*time.Millisecond); err == nil {
		t.Error("expected error when context expires with requests in flight")
	}
}
