//go:build !windows

package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
)

func shellDevice(script string) *Device {
	d := NewDevice("", "opus")
	d.commandLine = []string{"sh", "-c", script}
	d.acquireTimeout = 2 * time.Second
	return d
}

type collector struct {
	mu   sync.Mutex
	data []byte
}

func (c *collector) handle(f []byte) {
	c.mu.Lock()
	c.data = append(c.data, f...)
	c.mu.Unlock()
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data)
}

func TestDeviceStreamsUntilStopped(t *testing.T) {
	d := shellDevice(`printf hello; exec sleep 5`)

	s, err := d.Acquire(context.Background(), capture.DefaultConstraints())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var c collector
	if err := s.Start(c.handle); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(c.handle); !errors.Is(err, errAlreadyStarted) {
		t.Fatalf("second Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}

	if got := c.String(); got != "hello" {
		t.Fatalf("delivered %q, want %q", got, "hello")
	}
}

func TestDeviceWithSession(t *testing.T) {
	d := shellDevice(`printf 0123456789; exec sleep 5`)
	s := capture.NewSession(d, capture.WithFormat(d.Format()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	artifact, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if artifact.Size != 10 {
		t.Fatalf("artifact size = %d, want 10", artifact.Size)
	}
	if !strings.HasSuffix(artifact.Name, ".webm") || artifact.ContentType != "audio/webm" {
		t.Fatalf("artifact = %s (%s)", artifact.Name, artifact.ContentType)
	}
}

func TestDevicePermissionDenied(t *testing.T) {
	d := shellDevice(`echo "[alsa @ 0x1] cannot open audio device default (Permission denied)" >&2; exit 1`)

	_, err := d.Acquire(context.Background(), capture.DefaultConstraints())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Acquire() error = %v, want ErrPermissionDenied", err)
	}
}

func TestDeviceErrorMessage(t *testing.T) {
	d := shellDevice(`echo "default: No such file or directory" >&2; exit 1`)

	_, err := d.Acquire(context.Background(), capture.DefaultConstraints())
	if err == nil || errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Acquire() error = %v, want device failure", err)
	}
	if err.Error() != "default: No such file or directory" {
		t.Fatalf("error message = %q", err.Error())
	}
}

func TestDeviceAcquireTimeout(t *testing.T) {
	d := shellDevice(`exec sleep 5`)
	d.acquireTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := d.Acquire(context.Background(), capture.DefaultConstraints())
	if err == nil {
		t.Fatal("Acquire() succeeded without output")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("Acquire() did not honor its timeout")
	}
}

func TestClassifyExit(t *testing.T) {
	if err := classifyExit("", nil); err.Error() != "capture process exited before producing audio" {
		t.Fatalf("classifyExit empty = %q", err)
	}
	err := classifyExit("[AVFoundation indev @ 0x1] Failed to create AV capture input device: Not authorized\n", nil)
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("classifyExit avfoundation = %v", err)
	}
}
