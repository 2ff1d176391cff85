package traffic

import (
	"testing"
	"time"
)

func TestTracker_Counts(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()

	if got := tr.RequestCount(time.Minute); got != 4 {
		t.Errorf("RequestCount() = %d, want 4", got)
	}
	if got := tr.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3); denials excluded", errs, total)
	}
}

func TestTracker_BatchRecording(t *testing.T) {
	var tr Tracker
	tr.RecordSuccessN(10)
	tr.RecordErrorN(5)

	errs, total := tr.ErrorRate(time.Minute)
	if errs != 5 || total != 15 {
		t.Errorf("ErrorRate() = (%d, %d), want (5, 15)", errs, total)
	}
}

func TestTracker_WindowExcludesOldOutcomes(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	time.Sleep(5 * time.Millisecond)

	if got := tr.RequestCount(time.Millisecond); got != 0 {
		t.Errorf("RequestCount(1ms) = %d, want 0 for outcome outside window", got)
	}
	if got := tr.RequestCount(time.Minute); got != 1 {
		t.Errorf("RequestCount(1m) = %d, want 1", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordError()
	tr.Reset()
	if got := tr.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}
