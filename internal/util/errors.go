// Package util provides shared utility functions used across the capture service.
package util

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
)

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// IgnoreProcessDone returns nil for errors caused by signalling a process
// that has already exited.
func IgnoreProcessDone(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// SafeClose closes an io.Closer and logs any error that occurs.
// Nil closers and resources that were already closed are ignored.
func SafeClose(closer io.Closer, name string) {
	if closer == nil {
		return
	}
	err := closer.Close()
	if err == nil || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	slog.Warn("failed to close resource", "resource", name, "error", err)
}

// SafeCloseFunc creates a defer-friendly closure for resource cleanup.
func SafeCloseFunc(closer io.Closer, name string) func() {
	return func() {
		SafeClose(closer, name)
	}
}
