//go:build !windows

package util

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// GracefulSignal asks a child process to finish its output and exit.
// FFmpeg treats SIGINT as a request to write the container trailer.
// A process that already exited is not an error.
func GracefulSignal(p *os.Process) error {
	return IgnoreProcessDone(p.Signal(syscall.SIGINT))
}

// ForceKill terminates a process immediately. A process that already
// exited is not an error.
func ForceKill(p *os.Process) error {
	return IgnoreProcessDone(p.Signal(syscall.SIGKILL))
}
