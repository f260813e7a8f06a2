//go:build windows

package util

import (
	"errors"
	"os"
)

// ErrGracefulNotSupported indicates the platform cannot ask a child process to flush.
var ErrGracefulNotSupported = errors.New("graceful signal not supported on Windows")

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal reports ErrGracefulNotSupported: console control events
// cannot be delivered to a single child process. Callers fall back to
// ForceKill, so the container trailer may be missing.
func GracefulSignal(*os.Process) error {
	return ErrGracefulNotSupported
}

// ForceKill terminates a process immediately. A process that already
// exited is not an error.
func ForceKill(p *os.Process) error {
	return IgnoreProcessDone(p.Kill())
}
