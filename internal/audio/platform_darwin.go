//go:build darwin

package audio

import (
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-capture/internal/types"
)

func getPlatformConfig() CaptureConfig {
	return CaptureConfig{
		Command:          "ffmpeg",
		InputFormat:      "avfoundation",
		DevicePrefix:     ":",
		DefaultDevice:    ":0",
		SampleRateOption: "", // avfoundation captures at the device rate
	}
}

func platformLister() deviceLister {
	return deviceLister{
		command:     []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		startMarker: "AVFoundation audio devices:",
		stopMarker:  "AVFoundation video devices:",
		pattern:     regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
		toDevice: func(m []string) (types.AudioDevice, bool) {
			return types.AudioDevice{ID: ":" + m[1], Name: strings.TrimSpace(m[2])}, true
		},
	}
}
