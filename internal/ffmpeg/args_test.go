package ffmpeg

import (
	"slices"
	"strings"
	"testing"
)

func TestBuildCaptureArgs(t *testing.T) {
	got := BuildCaptureArgs(CaptureOptions{
		InputFormat: "alsa",
		InputArgs:   []string{"-sample_rate", "44100"},
		Device:      "default",
		SampleRate:  44100,
		Channels:    1,
		Filters:     []string{"highpass=f=80", "afftdn"},
		CodecArgs:   []string{"libopus", "-b:a", "96k"},
		Format:      "webm",
	})

	want := []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", "alsa", "-sample_rate", "44100", "-i", "default", "-vn",
		"-ac", "1", "-ar", "44100",
		"-af", "highpass=f=80,afftdn",
		"-codec:a", "libopus", "-b:a", "96k",
		"-flush_packets", "1", "-f", "webm", "pipe:1",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("BuildCaptureArgs =\n%v\nwant\n%v", got, want)
	}
}

func TestBuildCaptureArgsOmitsEmptyOptions(t *testing.T) {
	got := BuildCaptureArgs(CaptureOptions{
		InputFormat: "avfoundation",
		Device:      ":0",
		CodecArgs:   []string{"libmp3lame"},
		Format:      "mp3",
	})
	for _, flag := range []string{"-ac", "-ar", "-af"} {
		if slices.Contains(got, flag) {
			t.Fatalf("unexpected %s in %v", flag, got)
		}
	}
	if got[len(got)-1] != "pipe:1" {
		t.Fatalf("last arg = %q, want pipe:1", got[len(got)-1])
	}
}

func TestExtractLastError(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{"empty", "", ""},
		{"blank lines", "\n  \n", ""},
		{"last line", "first\n[alsa] cannot open audio device hw:1 (No such file or directory)\n\n", "[alsa] cannot open audio device hw:1 (No such file or directory)"},
		{"truncated", strings.Repeat("x", 250), strings.Repeat("x", 200) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractLastError(tt.stderr); got != tt.want {
				t.Fatalf("ExtractLastError = %q, want %q", got, tt.want)
			}
		})
	}
}
