package audio

import (
	"context"
	"regexp"
	"slices"
	"testing"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/types"
)

func TestCaptureFilters(t *testing.T) {
	if f := captureFilters(capture.Constraints{}); f != nil {
		t.Fatalf("filters without noise suppression = %v", f)
	}
	f := captureFilters(capture.DefaultConstraints())
	if !slices.Contains(f, "afftdn=nf=-25") {
		t.Fatalf("filters = %v, want afftdn", f)
	}
}

func TestOutputSampleRate(t *testing.T) {
	c := capture.DefaultConstraints()
	if got := outputSampleRate(c, types.Preset("opus")); got != 48000 {
		t.Fatalf("opus rate = %d, want 48000", got)
	}
	if got := outputSampleRate(c, types.Preset("mp3")); got != 44100 {
		t.Fatalf("mp3 rate = %d, want 44100", got)
	}
}

func TestBuildCaptureCommandUsesConfiguredDevice(t *testing.T) {
	cmd, args, err := BuildCaptureCommand(context.Background(), "mic", capture.DefaultConstraints(), types.Preset("opus"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd != "ffmpeg" {
		t.Fatalf("command = %q", cmd)
	}
	i := slices.Index(args, "-i")
	if i < 0 || i+1 >= len(args) {
		t.Fatalf("no -i in %v", args)
	}
	if got := args[i+1]; got != getPlatformConfig().DevicePrefix+"mic" {
		t.Fatalf("device = %q", got)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Fatalf("output = %q", args[len(args)-1])
	}
}

func TestDeviceListerParse(t *testing.T) {
	l := deviceLister{
		pattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		toDevice: func(m []string) (types.AudioDevice, bool) {
			return types.AudioDevice{ID: "default:CARD=" + m[2], Name: m[3]}, true
		},
		fallback: []types.AudioDevice{{ID: "default", Name: "System default"}},
	}

	out := "**** List of CAPTURE Hardware Devices ****\n" +
		"card 1: Microphone [USB Microphone], device 0: USB Audio [USB Audio]\n" +
		"card 1: Microphone [USB Microphone], device 1: USB Audio #1 [USB Audio #1]\n"
	got := l.parse(out)
	want := []types.AudioDevice{{ID: "default:CARD=Microphone", Name: "USB Microphone"}}
	if !slices.Equal(got, want) {
		t.Fatalf("devices = %v, want %v", got, want)
	}

	if got := l.parse("nothing here"); !slices.Equal(got, l.fallback) {
		t.Fatalf("fallback = %v", got)
	}
}

func TestDeviceListerSections(t *testing.T) {
	l := deviceLister{
		startMarker: "DirectShow audio devices",
		stopMarker:  "DirectShow video devices",
		pattern:     regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"`),
		toDevice: func(m []string) (types.AudioDevice, bool) {
			return types.AudioDevice{ID: "audio=" + m[1], Name: m[1]}, true
		},
	}

	out := `[dshow @ 0x1] "Webcam" (video)
[dshow @ 0x1] DirectShow audio devices
[dshow @ 0x1]  "Microphone (Realtek Audio)"
[dshow @ 0x1]     Alternative name "@device_cm_{33D9A762}\wave_{1}"
[dshow @ 0x1] DirectShow video devices
[dshow @ 0x1]  "Integrated Camera"
`
	got := l.parse(out)
	want := []types.AudioDevice{{ID: "audio=Microphone (Realtek Audio)", Name: "Microphone (Realtek Audio)"}}
	if !slices.Equal(got, want) {
		t.Fatalf("devices = %v, want %v", got, want)
	}
}
