package provider

import (
	"context"
	"errors"

	"github.com/runboardhq/runboard/internal/models"
)

// ScalarProvider is implemented by scalar data backends (log directory,
// SQLite store, remote data server).
type ScalarProvider interface {
	// ListRuns returns the names of all known runs, sorted.
	ListRuns(ctx context.Context) ([]string, error)
	// ListTags returns the scalar tags logged for the run, sorted.
	ListTags(ctx context.Context, run string) ([]string, error)
	// ReadScalars returns the full scalar series for the run/tag pair.
	ReadScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error)
	// Check verifies the backend is reachable. Used by health checks and
	// degraded-state recovery.
	Check(ctx context.Context) error
}

var (
	ErrRunNotFound = errors.New("run not found")
	ErrTagNotFound = errors.New("tag not found")
	ErrUnavailable = errors.New("provider unavailable")
	ErrRateLimited = errors.New("rate limited")
)
