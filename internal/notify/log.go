package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// LogArtifactSaved records a saved recording.
func LogArtifactSaved(logPath, sessionID string, artifact types.ArtifactInfo) error {
	return appendLogEntry(logPath, types.EventLogEntry{
		Timestamp: util.RFC3339Now(),
		Event:     EventArtifactSaved,
		SessionID: sessionID,
		Artifact:  artifact.Name,
		Bytes:     artifact.Size,
	})
}

// LogCaptureFailed records a failed capture attempt.
func LogCaptureFailed(logPath, sessionID, kind, message string) error {
	return appendLogEntry(logPath, types.EventLogEntry{
		Timestamp: util.RFC3339Now(),
		Event:     EventCaptureFailed,
		SessionID: sessionID,
		ErrorKind: kind,
		Error:     message,
	})
}

// WriteTestLog writes a test entry to verify log file configuration.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, types.EventLogEntry{
		Timestamp: util.RFC3339Now(),
		Event:     EventTest,
	})
}

// appendLogEntry appends a JSON log entry to the file.
func appendLogEntry(logPath string, entry types.EventLogEntry) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "log file")()

	if _, err := f.Write(append(jsonData, '\n')); err != nil {
		return util.WrapError("write log entry", err)
	}

	return nil
}

// ReadEventLog returns the last maxEntries entries of the event log, newest first.
// A missing file yields no entries. Malformed lines are skipped.
func ReadEventLog(logPath string, maxEntries int) ([]types.EventLogEntry, error) {
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return []types.EventLogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return []types.EventLogEntry{}, nil
	}
	lines := strings.Split(trimmed, "\n")

	start := max(0, len(lines)-maxEntries)
	lines = lines[start:]

	entries := make([]types.EventLogEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		var entry types.EventLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	slices.Reverse(entries)
	return entries, nil
}
