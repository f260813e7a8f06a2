// Package audio provides cross-platform microphone capture backed by FFmpeg.
package audio

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-capture/internal/types"
)

// ErrNoAudioDevice is returned when no audio input device is available.
var ErrNoAudioDevice = errors.New("no audio input device found")

// CaptureConfig defines platform-specific audio capture configuration.
type CaptureConfig struct {
	// Command is the executable name.
	Command string

	// InputFormat is the FFmpeg input format (e.g., "alsa", "avfoundation", "dshow").
	InputFormat string

	// DevicePrefix is prepended to device IDs (e.g., "audio=" for DirectShow).
	DevicePrefix string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// SampleRateOption is the demuxer option that sets the capture rate.
	// Empty when the input format does not accept one.
	SampleRateOption string
}

// BuildCaptureCommand returns the command and arguments for capturing from
// device with the given constraints and encoding with preset.
// If device is empty, it attempts to use the default or auto-detect.
func BuildCaptureCommand(ctx context.Context, device string, c capture.Constraints, preset types.CodecPreset) (cmd string, args []string, err error) {
	cfg := getPlatformConfig()

	if device == "" {
		device = cfg.DefaultDevice
	}

	// Auto-detect if still empty (Windows has no safe default).
	if device == "" {
		devices := ListDevices(ctx)
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}

	if cfg.DevicePrefix != "" && !strings.HasPrefix(device, cfg.DevicePrefix) {
		device = cfg.DevicePrefix + device
	}

	var inputArgs []string
	if cfg.SampleRateOption != "" && c.SampleRate > 0 {
		inputArgs = []string{"-" + cfg.SampleRateOption, strconv.Itoa(c.SampleRate)}
	}

	return cfg.Command, ffmpeg.BuildCaptureArgs(ffmpeg.CaptureOptions{
		InputFormat: cfg.InputFormat,
		InputArgs:   inputArgs,
		Device:      device,
		SampleRate:  outputSampleRate(c, preset),
		Channels:    1,
		Filters:     captureFilters(c),
		CodecArgs:   preset.Args,
		Format:      preset.Format,
	}), nil
}

// outputSampleRate picks the encoder rate: the preset's fixed rate when it
// has one, otherwise the requested capture rate.
func outputSampleRate(c capture.Constraints, preset types.CodecPreset) int {
	if preset.SampleRate > 0 {
		return preset.SampleRate
	}
	return c.SampleRate
}

// captureFilters maps constraints onto an FFmpeg filter chain.
// Echo cancellation needs a far-end reference FFmpeg does not have, so it adds nothing here.
func captureFilters(c capture.Constraints) []string {
	if !c.NoiseSuppression {
		return nil
	}
	return []string{"highpass=f=80", "afftdn=nf=-25"}
}
