package main

import "testing"

// TestCoverageGaps_IntentionallyUntested documents why cmd/runboard has no unit tests.
// Run with -v to see skip reason.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Skip("main.go is wiring-only; RunMain substitution and exit-code propagation are covered by the root package tests")
}
