package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// ListDevices returns available audio input devices for the current platform.
func ListDevices(ctx context.Context) []types.AudioDevice {
	return platformLister().list(ctx)
}

// Device captures from a platform input through an FFmpeg child process.
// It implements capture.Device.
type Device struct {
	input          string
	preset         types.CodecPreset
	acquireTimeout time.Duration

	// commandLine overrides the generated FFmpeg invocation when set.
	commandLine []string

	echoWarning sync.Once
}

// NewDevice returns a Device reading from input and encoding with codec.
// An empty input selects the platform default.
func NewDevice(input, codec string) *Device {
	return &Device{
		input:          input,
		preset:         types.Preset(codec),
		acquireTimeout: types.AcquireTimeout,
	}
}

// Supported reports whether the capture binary is available on this host.
func (d *Device) Supported() bool {
	name := getPlatformConfig().Command
	if len(d.commandLine) > 0 {
		name = d.commandLine[0]
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// Format returns the container produced by this device.
func (d *Device) Format() capture.Format {
	return capture.Format{ContentType: d.preset.ContentType, Extension: d.preset.Extension}
}

// Acquire starts the capture process and waits until it produces its first
// encoded bytes. A process that exits first is classified by its stderr.
func (d *Device) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	name, args, err := d.buildCommand(ctx, c)
	if err != nil {
		return nil, err
	}

	if c.EchoCancellation {
		d.echoWarning.Do(func() {
			slog.Info("echo cancellation is not available in the FFmpeg backend, capturing without it")
		})
	}

	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, util.WrapError("create stdout pipe", err)
	}
	stderr := util.NewStderrBuffer()
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
		}
		return nil, util.WrapError("start capture process", err)
	}

	s := newStream(cmd, stdout, stderr)

	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()
	if err := s.awaitFirstFragment(acquireCtx); err != nil {
		return nil, err
	}

	slog.Info("capture device acquired", "command", name, "input", d.input, "codec_format", d.preset.Format)
	return s, nil
}

// buildCommand returns the process to run for the given constraints.
func (d *Device) buildCommand(ctx context.Context, c capture.Constraints) (string, []string, error) {
	if len(d.commandLine) > 0 {
		return d.commandLine[0], d.commandLine[1:], nil
	}
	return BuildCaptureCommand(ctx, d.input, c, d.preset)
}

// permissionMarkers are stderr fragments that indicate the platform refused
// microphone access rather than failing to open it.
var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"not authorized",
	"not permitted to access",
	"access is denied",
	"access denied",
}

// classifyExit turns the stderr of a capture process that exited before
// producing audio into a capture error.
func classifyExit(stderr string, waitErr error) error {
	msg := ffmpeg.ExtractLastError(stderr)
	if msg == "" {
		if waitErr != nil {
			msg = waitErr.Error()
		} else {
			msg = "capture process exited before producing audio"
		}
	}

	lower := strings.ToLower(stderr)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", capture.ErrPermissionDenied, msg)
		}
	}
	return errors.New(msg)
}
