//go:build linux

package audio

import (
	"regexp"

	"github.com/oszuidwest/zwfm-capture/internal/types"
)

func getPlatformConfig() CaptureConfig {
	return CaptureConfig{
		Command:          "ffmpeg",
		InputFormat:      "alsa",
		DevicePrefix:     "",
		DefaultDevice:    "default",
		SampleRateOption: "sample_rate",
	}
}

func platformLister() deviceLister {
	return deviceLister{
		command: []string{"arecord", "-l"},
		pattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		toDevice: func(m []string) (types.AudioDevice, bool) {
			return types.AudioDevice{ID: "default:CARD=" + m[2], Name: m[3]}, true
		},
		fallback: []types.AudioDevice{
			{ID: "default", Name: "System default"},
		},
	}
}
