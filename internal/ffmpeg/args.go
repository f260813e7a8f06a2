// Package ffmpeg provides shared FFmpeg utilities and constants.
package ffmpeg

import (
	"bytes"
	"strconv"
	"strings"
)

// MaxStderrSize limits the stderr buffer to prevent memory exhaustion.
const MaxStderrSize = 64 * 1024 // 64KB

// ExtractLastError extracts the last meaningful error line from FFmpeg stderr.
// Returns empty string if no meaningful error found.
func ExtractLastError(stderr string) string {
	if stderr == "" {
		return ""
	}
	lines := bytes.Split([]byte(stderr), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := string(bytes.TrimSpace(lines[i]))
		if line != "" {
			if len(line) > 200 {
				return line[:200] + "..."
			}
			return line
		}
	}
	return ""
}

// CaptureOptions describes an FFmpeg capture-and-encode invocation.
type CaptureOptions struct {
	InputFormat string   // e.g. "alsa", "avfoundation", "dshow"
	InputArgs   []string // demuxer options placed before -i
	Device      string   // input device identifier
	SampleRate  int      // output sample rate in Hz
	Channels    int      // output channel count
	Filters     []string // audio filter chain, applied in order
	CodecArgs   []string // codec name followed by its options
	Format      string   // output container
}

// BuildCaptureArgs returns FFmpeg arguments that read from a platform input
// device and write the encoded container to stdout.
func BuildCaptureArgs(opts CaptureOptions) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", opts.InputFormat,
	}
	args = append(args, opts.InputArgs...)
	args = append(args, "-i", opts.Device, "-vn")
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if len(opts.Filters) > 0 {
		args = append(args, "-af", strings.Join(opts.Filters, ","))
	}
	args = append(args, "-codec:a")
	args = append(args, opts.CodecArgs...)
	args = append(args, "-flush_packets", "1", "-f", opts.Format, "pipe:1")
	return args
}
