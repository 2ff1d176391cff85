package service

import "sync"

// stampedeTracker tracks concurrent cache misses per series key to detect
// stampede conditions where multiple requests read the provider for the
// same key simultaneously.
type stampedeTracker struct {
	mu     sync.Mutex
	misses map[string]int // key -> concurrent miss count
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		misses: make(map[string]int),
	}
}

// RecordMiss increments the miss count for the key and returns the current
// concurrency level (1 = first miss, >1 = stampede in progress).
func (t *stampedeTracker) RecordMiss(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.misses[key]++
	return t.misses[key]
}

// RecordHit decrements the miss count for the key once the read completes.
func (t *stampedeTracker) RecordHit(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.misses[key] > 0 {
		t.misses[key]--
	}
	if t.misses[key] == 0 {
		delete(t.misses, key)
	}
}
