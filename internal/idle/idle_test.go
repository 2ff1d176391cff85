package idle

import (
	"testing"
	"time"
)

func TestTracker_RequestCount(t *testing.T) {
	var tr Tracker
	tr.RecordRequest()
	tr.RecordRequest()

	if got := tr.RequestCount(time.Minute); got != 2 {
		t.Errorf("RequestCount() = %d, want 2", got)
	}
}

func TestTracker_WindowExcludesOldRequests(t *testing.T) {
	var tr Tracker
	tr.RecordRequest()
	time.Sleep(5 * time.Millisecond)

	if got := tr.RequestCount(time.Millisecond); got != 0 {
		t.Errorf("RequestCount(1ms) = %d, want 0", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.RecordRequest()
	tr.Reset()
	if got := tr.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}
