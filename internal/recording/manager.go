// Package recording drives capture sessions and stores the resulting recordings.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// lockFileName is created in the recording directory while a session holds the device.
const lockFileName = ".capture.lock"

// errDeviceBusy is reported when another process holds the capture lock.
var errDeviceBusy = errors.New("capture device is in use by another process")

// Notifier receives capture events.
type Notifier interface {
	ArtifactSaved(sessionID string, artifact types.ArtifactInfo)
	CaptureFailed(sessionID string, err error)
}

// DeviceFactory returns the capture device for the current configuration.
type DeviceFactory func(cfg config.Snapshot) capture.Device

// formatter is implemented by devices that know their output container.
type formatter interface {
	Format() capture.Format
}

// Manager owns the current capture session. It creates a fresh session for
// every recording, retries device errors with backoff, enforces the maximum
// recording duration and saves finished recordings to the store.
type Manager struct {
	cfg        *config.Config
	newDevice  DeviceFactory
	store      *Store
	notifier   Notifier
	lockPath   string
	retryDelay time.Duration

	mu           sync.Mutex
	session      *capture.Session
	starting     bool
	lock         *flock.Flock
	timer        *time.Timer
	lastArtifact *types.ArtifactInfo
	lastErr      error // failures outside the session, such as saving
}

// NewManager creates a Manager that stores recordings under the configured recording path.
func NewManager(cfg *config.Config, newDevice DeviceFactory, notifier Notifier) *Manager {
	path := cfg.RecordingPath()
	return &Manager{
		cfg:        cfg,
		newDevice:  newDevice,
		store:      NewStore(path),
		notifier:   notifier,
		lockPath:   filepath.Join(path, lockFileName),
		retryDelay: types.InitialRetryDelay,
	}
}

// Store returns the artifact store.
func (m *Manager) Store() *Store {
	return m.store
}

// Start begins a new recording. Device errors are retried with exponential
// backoff up to the configured number of attempts; a permission refusal is
// returned immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.starting || (m.session != nil && !m.session.State().Terminal()) {
		m.mu.Unlock()
		return fmt.Errorf("%w: recording already in progress", capture.ErrInvalidState)
	}
	m.starting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	fl, err := m.acquireLock()
	if err != nil {
		m.setLastError(err)
		m.notifier.CaptureFailed("", err)
		return err
	}

	snap := m.cfg.Snapshot()
	retries := m.cfg.StartRetries()
	backoff := util.NewBackoff(m.retryDelay, types.MaxRetryDelay)

	var session *capture.Session
	for attempt := 0; ; attempt++ {
		session = m.newSession(snap)

		m.mu.Lock()
		m.session = session
		m.lock = fl
		m.lastErr = nil
		m.mu.Unlock()

		err = session.Start(ctx)
		if err == nil || capture.KindOf(err) != capture.KindDeviceError || attempt >= retries {
			break
		}

		slog.Warn("capture start failed, retrying",
			"session_id", session.ID(), "attempt", attempt+1, "retry_in", backoff.Current(), "error", err)
		if backoff.Wait(ctx) != nil {
			break
		}
	}

	if err != nil {
		m.finish(session)
		m.notifier.CaptureFailed(session.ID(), err)
		return err
	}

	if maxSeconds := snap.MaxDurationSeconds; maxSeconds > 0 {
		m.mu.Lock()
		if m.session == session && session.State() == capture.StateRecording {
			limit := time.Duration(maxSeconds) * time.Second
			m.timer = time.AfterFunc(limit, func() { m.stopAtLimit(session, limit) })
		}
		m.mu.Unlock()
	}
	return nil
}

// newSession creates an idle session for the configured device.
func (m *Manager) newSession(snap config.Snapshot) *capture.Session {
	device := m.newDevice(snap)

	preset := types.Preset(snap.AudioCodec)
	format := capture.Format{ContentType: preset.ContentType, Extension: preset.Extension}
	if f, ok := device.(formatter); ok {
		format = f.Format()
	}

	return capture.NewSession(device,
		capture.WithConstraints(snap.Constraints),
		capture.WithFormat(format),
	)
}

// acquireLock takes the cross-process capture lock.
func (m *Manager) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0o755); err != nil {
		return nil, util.WrapError("create recording directory", err)
	}
	fl := flock.New(m.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, &capture.DeviceError{Err: util.WrapError("acquire capture lock", err)}
	}
	if !locked {
		return nil, &capture.DeviceError{Err: errDeviceBusy}
	}
	return fl, nil
}

// Stop finishes the active recording and saves it.
func (m *Manager) Stop(ctx context.Context) (*types.ArtifactInfo, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, fmt.Errorf("%w: no active recording", capture.ErrInvalidState)
	}
	return m.stopSession(ctx, session)
}

// stopSession stops the given session and saves its artifact.
func (m *Manager) stopSession(ctx context.Context, session *capture.Session) (*types.ArtifactInfo, error) {
	artifact, err := session.Stop(ctx)
	if errors.Is(err, capture.ErrInvalidState) {
		return nil, err
	}
	m.finish(session)
	if err != nil {
		m.notifier.CaptureFailed(session.ID(), err)
		return nil, err
	}

	info, err := m.store.Save(artifact)
	if err != nil {
		m.setLastError(err)
		m.notifier.CaptureFailed(session.ID(), err)
		return nil, err
	}

	m.mu.Lock()
	m.lastArtifact = &info
	m.mu.Unlock()

	slog.Info("recording saved", "session_id", session.ID(), "path", info.Path, "bytes", info.Size)
	m.notifier.ArtifactSaved(session.ID(), info)
	return &info, nil
}

// stopAtLimit ends a recording that reached the maximum duration.
func (m *Manager) stopAtLimit(session *capture.Session, limit time.Duration) {
	slog.Info("maximum recording duration reached", "session_id", session.ID(), "limit", limit)

	ctx, cancel := context.WithTimeout(context.Background(), 2*types.ShutdownTimeout)
	defer cancel()
	if _, err := m.stopSession(ctx, session); err != nil && !errors.Is(err, capture.ErrInvalidState) {
		slog.Error("failed to stop recording at duration limit", "session_id", session.ID(), "error", err)
	}
}

// Cancel discards the active recording. It does nothing unless a recording is in progress.
func (m *Manager) Cancel() {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil || session.State() != capture.StateRecording {
		return
	}

	session.Cancel()
	if session.State() == capture.StateCancelled {
		m.finish(session)
	}
}

// Shutdown saves an active recording before the service exits.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil || session.State() != capture.StateRecording {
		return
	}
	if _, err := m.stopSession(ctx, session); err != nil {
		slog.Error("failed to save recording on shutdown", "session_id", session.ID(), "error", err)
	}
}

// finish releases the manager resources held for session.
func (m *Manager) finish(session *capture.Session) {
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	fl := m.lock
	m.lock = nil
	m.mu.Unlock()

	if fl != nil {
		if err := fl.Unlock(); err != nil {
			slog.Warn("failed to release capture lock", "path", m.lockPath, "error", err)
		}
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Supported reports whether the configured device can record on this host.
func (m *Manager) Supported() bool {
	return capture.IsSupported(m.newDevice(m.cfg.Snapshot()))
}

// Status returns the state of the current or most recent session.
func (m *Manager) Status() types.CaptureStatus {
	m.mu.Lock()
	session := m.session
	last := m.lastArtifact
	lastErr := m.lastErr
	m.mu.Unlock()

	status := types.CaptureStatus{
		State:     string(capture.StateIdle),
		Supported: m.Supported(),
	}
	if last != nil {
		status.Artifact = last.Name
	}

	if session != nil {
		s := session.Status()
		status.SessionID = s.ID
		status.State = string(s.State)
		status.Chunks = s.Chunks
		status.Bytes = s.Bytes
		if s.State == capture.StateRecording && !s.StartedAt.IsZero() {
			status.Elapsed = util.FormatElapsed(time.Since(s.StartedAt))
		}
		if lastErr == nil {
			lastErr = s.LastError
		}
	}

	if lastErr != nil {
		status.LastError = lastErr.Error()
		status.ErrorKind = string(capture.KindOf(lastErr))
	}
	return status
}
