package audio

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/types"
)

// listTimeout bounds a device listing command; some drivers hang on enumeration.
const listTimeout = 10 * time.Second

// deviceLister describes how to enumerate capture inputs on a platform by
// parsing the output of a listing command.
type deviceLister struct {
	command []string

	// startMarker and stopMarker delimit the audio section of the output.
	// An empty startMarker means every line is considered.
	startMarker string
	stopMarker  string

	// pattern matches one device line; toDevice converts its submatches.
	pattern  *regexp.Regexp
	toDevice func(m []string) (types.AudioDevice, bool)

	// fallback is returned when nothing could be detected.
	fallback []types.AudioDevice
}

// list runs the listing command and parses its combined output.
func (l deviceLister) list(ctx context.Context) []types.AudioDevice {
	if len(l.command) == 0 {
		return l.fallback
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	// Listing commands such as "ffmpeg -list_devices" exit non-zero by design.
	output, err := exec.CommandContext(ctx, l.command[0], l.command[1:]...).CombinedOutput()
	if err != nil && len(output) == 0 {
		slog.Error("failed to list audio devices", "command", l.command[0], "error", err)
		return l.fallback
	}
	return l.parse(string(output))
}

// parse extracts devices from listing output. Devices with a repeated ID are
// reported once.
func (l deviceLister) parse(output string) []types.AudioDevice {
	var devices []types.AudioDevice
	seen := make(map[string]bool)
	inSection := l.startMarker == ""

	for line := range strings.Lines(output) {
		switch {
		case l.startMarker != "" && strings.Contains(line, l.startMarker):
			inSection = true
			continue
		case l.stopMarker != "" && strings.Contains(line, l.stopMarker):
			inSection = false
			continue
		}
		// DirectShow prints an "Alternative name" line under every device.
		if !inSection || l.pattern == nil || strings.Contains(line, "Alternative name") {
			continue
		}

		m := l.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		dev, ok := l.toDevice(m)
		if !ok || seen[dev.ID] {
			continue
		}
		seen[dev.ID] = true
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return l.fallback
	}
	return devices
}
