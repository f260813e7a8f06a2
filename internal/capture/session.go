package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one start-to-finish recording attempt. A Session is single use:
// once it reaches a terminal state, a new Session is needed to record again.
type Session struct {
	id          string
	device      Device
	constraints Constraints
	format      Format
	now         func() time.Time

	mu        sync.Mutex
	state     State
	busy      bool // Start or Stop waiting on the platform
	chunks    [][]byte
	buffered  int64
	stream    Stream
	artifact  *Artifact
	startedAt time.Time
	lastError error
}

// Option configures a Session.
type Option func(*Session)

// WithConstraints overrides the default device constraints.
func WithConstraints(c Constraints) Option {
	return func(s *Session) { s.constraints = c }
}

// WithFormat sets the container format reported on the artifact.
func WithFormat(f Format) Option {
	return func(s *Session) { s.format = f }
}

// WithClock sets the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an idle Session that records from device.
func NewSession(device Device, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		device:      device,
		constraints: DefaultConstraints(),
		format:      FormatWebM,
		now:         time.Now,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Artifact returns the finalized artifact, or nil unless the session is stopped.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Status is a point-in-time view of a Session.
type Status struct {
	ID        string
	State     State
	Chunks    int
	Bytes     int64
	StartedAt time.Time
	LastError error
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:        s.id,
		State:     s.state,
		Chunks:    len(s.chunks),
		Bytes:     s.buffered,
		StartedAt: s.startedAt,
		LastError: s.lastError,
	}
}

// Start acquires the device and begins recording. On failure the session
// moves to StateFailed and the error has kind KindPermissionDenied or
// KindDeviceError. Calling Start outside StateIdle returns ErrInvalidState.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle || s.busy {
		state := s.state
		s.mu.Unlock()
		return invalidState("recording already started", state)
	}
	s.busy = true
	s.mu.Unlock()

	stream, err := s.acquire(ctx)
	if err != nil {
		err = classifyAcquireError(err)
		s.mu.Lock()
		s.busy = false
		s.state = StateFailed
		s.lastError = err
		s.mu.Unlock()
		slog.Warn("capture device acquisition failed", "session_id", s.id, "kind", KindOf(err), "error", err)
		return err
	}

	s.mu.Lock()
	s.stream = stream
	s.state = StateRecording
	s.startedAt = s.now()
	s.mu.Unlock()

	if err := stream.Start(s.deliver(stream)); err != nil {
		err = &DeviceError{Err: err}
		s.mu.Lock()
		s.busy = false
		s.state = StateFailed
		s.stream = nil
		s.chunks = nil
		s.buffered = 0
		s.lastError = err
		s.mu.Unlock()
		s.release(stream)
		slog.Warn("capture recorder failed to start", "session_id", s.id, "error", err)
		return err
	}

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()

	slog.Info("recording started", "session_id", s.id,
		"sample_rate", s.constraints.SampleRate,
		"echo_cancellation", s.constraints.EchoCancellation,
		"noise_suppression", s.constraints.NoiseSuppression)
	return nil
}

// acquire asks the device for a stream, rejecting devices the host does not expose.
func (s *Session) acquire(ctx context.Context) (Stream, error) {
	if s.device == nil {
		return nil, errNoDevice
	}
	return s.device.Acquire(ctx, s.constraints)
}

// deliver returns the fragment handler bound to stream. Fragments from a
// stream that is no longer the session's active handle are dropped.
func (s *Session) deliver(stream Stream) FragmentHandler {
	return func(fragment []byte) {
		if len(fragment) == 0 {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateRecording || s.stream != stream {
			return
		}
		s.chunks = append(s.chunks, fragment)
		s.buffered += int64(len(fragment))
	}
}

// Stop waits for the recorder to flush, releases the device and returns the
// recording. Calling Stop without an active recording returns ErrInvalidState.
// If the recorder delivered no audio at all, the session is cancelled and
// ErrEmptyRecording is returned.
func (s *Session) Stop(ctx context.Context) (*Artifact, error) {
	s.mu.Lock()
	if s.state != StateRecording || s.busy {
		state := s.state
		s.mu.Unlock()
		return nil, invalidState("no active recording", state)
	}
	s.busy = true
	stream := s.stream
	s.mu.Unlock()

	// Fragments keep arriving until the recorder confirms the flush.
	if err := stream.Stop(ctx); err != nil {
		slog.Warn("recorder did not flush cleanly", "session_id", s.id, "error", err)
	}

	s.mu.Lock()
	s.busy = false
	s.stream = nil
	if len(s.chunks) == 0 {
		s.state = StateCancelled
		s.lastError = ErrEmptyRecording
		s.mu.Unlock()
		s.release(stream)
		slog.Warn("recording stopped without audio", "session_id", s.id)
		return nil, ErrEmptyRecording
	}
	s.state = StateStopped
	s.artifact = newArtifact(s.chunks, s.format, s.now())
	artifact := s.artifact
	s.mu.Unlock()

	s.release(stream)

	slog.Info("recording stopped", "session_id", s.id, "artifact", artifact.Name, "bytes", artifact.Size)
	return artifact, nil
}

// Cancel discards the recording and releases the device. It is a no-op
// unless the session is recording.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateRecording || s.busy {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	s.state = StateCancelled
	s.chunks = nil
	s.buffered = 0
	s.mu.Unlock()

	s.release(stream)
	slog.Info("recording cancelled", "session_id", s.id)
}

// release gives the device back. Callers must have detached stream from the
// session first so that each handle is released once.
func (s *Session) release(stream Stream) {
	if stream == nil {
		return
	}
	if err := stream.Release(); err != nil {
		slog.Warn("failed to release capture device", "session_id", s.id, "error", err)
	}
}
