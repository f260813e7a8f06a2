// Package types provides shared type definitions used across the capture service.
package types

import (
	"strings"
	"time"
)

// Retry settings.
const (
	InitialRetryDelay = 1 * time.Second
	MaxRetryDelay     = 10 * time.Second
	DefaultRetries    = 2 // Extra start attempts after a device error
)

// Shutdown settings.
const (
	ShutdownTimeout = 3 * time.Second // Time to wait for the recorder to flush before SIGKILL
	AcquireTimeout  = 5 * time.Second // Time to wait for the device to produce its first bytes
)

// CodecPreset defines FFmpeg encoding parameters and the resulting container.
type CodecPreset struct {
	Args        []string
	Format      string
	ContentType string
	Extension   string
	SampleRate  int // Fixed encoder rate; 0 keeps the capture rate
}

// CodecPresets maps codec names to their FFmpeg configuration.
var CodecPresets = map[string]CodecPreset{
	"opus": {
		Args:        []string{"libopus", "-b:a", "96k", "-application", "voip"},
		Format:      "webm",
		ContentType: "audio/webm",
		Extension:   "webm",
		SampleRate:  48000, // libopus does not accept 44.1 kHz
	},
	"vorbis": {
		Args:        []string{"libvorbis", "-qscale:a", "5"},
		Format:      "ogg",
		ContentType: "audio/ogg",
		Extension:   "ogg",
	},
	"mp3": {
		Args:        []string{"libmp3lame", "-b:a", "128k"},
		Format:      "mp3",
		ContentType: "audio/mpeg",
		Extension:   "mp3",
	},
}

// DefaultCodec is used when an unknown codec is specified.
const DefaultCodec = "opus"

// Preset returns the preset for codec, falling back to DefaultCodec.
func Preset(codec string) CodecPreset {
	if preset, ok := CodecPresets[codec]; ok {
		return preset
	}
	return CodecPresets[DefaultCodec]
}

// ContentTypeForExtension returns the MIME type of a stored artifact by its
// file extension (with or without the leading dot).
func ContentTypeForExtension(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	for _, preset := range CodecPresets {
		if preset.Extension == ext {
			return preset.ContentType
		}
	}
	return "application/octet-stream"
}

// AudioDevice represents an audio input device.
type AudioDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CaptureStatus contains the state of the current (or most recent) capture session.
type CaptureStatus struct {
	SessionID string `json:"session_id,omitzero"`
	State     string `json:"state"`
	Supported bool   `json:"supported"`
	Chunks    int    `json:"chunks,omitzero"`
	Bytes     int64  `json:"bytes,omitzero"`
	Elapsed   string `json:"elapsed,omitzero"`
	LastError string `json:"last_error,omitzero"`
	ErrorKind string `json:"error_kind,omitzero"`
	Artifact  string `json:"artifact,omitzero"`
}

// ArtifactInfo describes a stored recording.
type ArtifactInfo struct {
	Name        string `json:"name"`
	Path        string `json:"-"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"` // Unix millis
}

// EventLogEntry is one line of the JSON-lines capture event log.
type EventLogEntry struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	Artifact  string `json:"artifact,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// VersionInfo contains version comparison data for the frontend.
type VersionInfo struct {
	Current     string `json:"current"`
	Latest      string `json:"latest,omitzero"`
	UpdateAvail bool   `json:"update_available"`
	Commit      string `json:"commit,omitzero"`
	BuildTime   string `json:"build_time,omitzero"`
}

// WSCommandResult is sent to the client after a capture command.
type WSCommandResult struct {
	Type      string        `json:"type"`
	Command   string        `json:"command"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitzero"`
	ErrorKind string        `json:"error_kind,omitzero"`
	Artifact  *ArtifactInfo `json:"artifact,omitempty"`
}

// WSTestResult is sent to the client after a notification test.
type WSTestResult struct {
	Type     string `json:"type"`
	TestType string `json:"test_type"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitzero"`
}

// WSEventLogResult is sent to the client with recent event log entries.
type WSEventLogResult struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitzero"`
	Path    string          `json:"path,omitzero"`
	Entries []EventLogEntry `json:"entries,omitempty"`
}
