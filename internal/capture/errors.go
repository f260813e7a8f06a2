package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the user or platform refuses microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrInvalidState is returned when an operation is illegal for the current session state.
	ErrInvalidState = errors.New("invalid capture state")

	// ErrEmptyRecording is returned by Stop when the recorder delivered no audio.
	ErrEmptyRecording = errors.New("no audio captured")

	errNoDevice = errors.New("no capture device configured")
)

// DeviceError wraps any acquisition failure other than a permission refusal.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "audio device error"
	}
	return "audio device error: " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies capture errors for callers and status reporting.
type ErrorKind string

// Error kinds reported by KindOf.
const (
	KindNone             ErrorKind = ""
	KindPermissionDenied ErrorKind = "permission_denied"
	KindDeviceError      ErrorKind = "device_error"
	KindInvalidState     ErrorKind = "invalid_state"
)

// KindOf returns the kind of a capture error.
func KindOf(err error) ErrorKind {
	var devErr *DeviceError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.As(err, &devErr):
		return KindDeviceError
	default:
		return KindNone
	}
}

// invalidState returns ErrInvalidState annotated with the current state.
func invalidState(msg string, state State) error {
	return fmt.Errorf("%w: %s (state %s)", ErrInvalidState, msg, state)
}

// classifyAcquireError maps a device failure onto the capture error taxonomy.
func classifyAcquireError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return err
	}
	return &DeviceError{Err: err}
}
