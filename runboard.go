// Package runboard exposes the server entry point for module runners.
//
// The implementation lives in internal packages; this package re-exports
// only RunMain so that embedders and the runboard command share a single
// entry point without reaching into internal wiring.
package runboard

import "github.com/runboardhq/runboard/internal/program"

// RunMain starts the scalar metrics server and blocks until shutdown.
// It returns the process exit code. Declared as a variable so tests can
// substitute the implementation.
var RunMain = program.RunMain
