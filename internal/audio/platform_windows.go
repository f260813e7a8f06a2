//go:build windows

package audio

import (
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-capture/internal/types"
)

func getPlatformConfig() CaptureConfig {
	return CaptureConfig{
		Command:          "ffmpeg",
		InputFormat:      "dshow",
		DevicePrefix:     "audio=",
		DefaultDevice:    "", // Auto-detect, no safe default on Windows
		SampleRateOption: "sample_rate",
	}
}

func platformLister() deviceLister {
	return deviceLister{
		command:     []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		startMarker: "DirectShow audio devices",
		stopMarker:  "DirectShow video devices",
		pattern:     regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"`),
		toDevice: func(m []string) (types.AudioDevice, bool) {
			name := strings.TrimSpace(m[1])
			if name == "" {
				return types.AudioDevice{}, false
			}
			return types.AudioDevice{ID: "audio=" + name, Name: name}, true
		},
	}
}
