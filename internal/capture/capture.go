// Package capture implements the microphone recording session: device
// acquisition, ordered chunk buffering, artifact finalization and device
// release on every exit path.
package capture

import "context"

// State represents the lifecycle position of a Session.
type State string

const (
	// StateIdle indicates no recording has been attempted yet.
	StateIdle State = "idle"
	// StateRecording indicates the device is held and fragments are buffered.
	StateRecording State = "recording"
	// StateStopped indicates the recording was finalized into an Artifact.
	StateStopped State = "stopped"
	// StateCancelled indicates the recording was discarded.
	StateCancelled State = "cancelled"
	// StateFailed indicates device acquisition failed.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCancelled || s == StateFailed
}

// DefaultSampleRate is the sample rate requested from the capture device.
const DefaultSampleRate = 44100

// Constraints describes how the capture device should be opened.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// DefaultConstraints returns echo cancellation and noise suppression enabled at 44.1 kHz.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       DefaultSampleRate,
	}
}

// Format describes the container produced by a device.
type Format struct {
	ContentType string
	Extension   string
}

// FormatWebM is the default artifact format.
var FormatWebM = Format{ContentType: "audio/webm", Extension: "webm"}

// FragmentHandler receives one binary audio fragment. The handler owns the slice.
type FragmentHandler func(fragment []byte)

// Device is the platform capture service.
type Device interface {
	// Supported reports whether the host exposes a capture device at all.
	Supported() bool

	// Acquire opens the microphone exclusively. It blocks until the platform
	// confirms acquisition or refuses it. A refusal by the user or platform
	// must wrap ErrPermissionDenied.
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a revocable handle on an acquired microphone plus its recorder.
type Stream interface {
	// Start begins fragment delivery. Fragments are delivered one at a time,
	// in order, from a single goroutine.
	Start(fn FragmentHandler) error

	// Stop ends recording and returns once the recorder has delivered its
	// final fragment.
	Stop(ctx context.Context) error

	// Release gives the device back to the platform.
	Release() error
}

// IsSupported reports whether recording can be attempted with d.
func IsSupported(d Device) bool {
	return d != nil && d.Supported()
}
