package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Set on SIGTERM/SIGINT and when
// degraded recovery exhausts its retries; the health handler reports
// shutting-down with 503 while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the server is draining and should not
// accept new scalar queries.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
