package server

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/notify"
	"github.com/oszuidwest/zwfm-capture/internal/types"
)

// chanResponder collects messages written back to the client.
type chanResponder chan any

func (c chanResponder) WriteJSON(v any) error {
	c <- v
	return nil
}

func (c chanResponder) next(t *testing.T) any {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
		return nil
	}
}

type fakeRecorder struct {
	startErr error
	artifact *types.ArtifactInfo
	stopErr  error
	cancels  int
}

func (f *fakeRecorder) Start(context.Context) error { return f.startErr }

func (f *fakeRecorder) Stop(context.Context) (*types.ArtifactInfo, error) {
	return f.artifact, f.stopErr
}

func (f *fakeRecorder) Cancel() { f.cancels++ }

func newTestHandler(t *testing.T, rec Recorder, triggers map[string]func() error) (*CommandHandler, *config.Config) {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	return NewCommandHandler(cfg, rec, triggers), cfg
}

func TestHandleCaptureCommands(t *testing.T) {
	artifact := &types.ArtifactInfo{Name: "audio-1.webm", ContentType: "audio/webm", Size: 45}
	tests := []struct {
		name     string
		command  string
		recorder *fakeRecorder
		success  bool
		kind     string
	}{
		{"start", "start", &fakeRecorder{}, true, ""},
		{"start denied", "start", &fakeRecorder{startErr: capture.ErrPermissionDenied}, false, "permission_denied"},
		{"stop", "stop", &fakeRecorder{artifact: artifact}, true, ""},
		{"stop idle", "stop", &fakeRecorder{stopErr: capture.ErrInvalidState}, false, "invalid_state"},
		{"cancel", "cancel", &fakeRecorder{}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.recorder, nil)
			conn := make(chanResponder, 1)
			updated := make(chan struct{}, 1)

			h.Handle(WSCommand{Type: tt.command}, conn, func() { updated <- struct{}{} })

			result, ok := conn.next(t).(types.WSCommandResult)
			if !ok {
				t.Fatal("response is not a command result")
			}
			if result.Command != tt.command || result.Success != tt.success || result.ErrorKind != tt.kind {
				t.Fatalf("result = %+v", result)
			}
			if tt.command == "stop" && tt.success && result.Artifact.Name != artifact.Name {
				t.Fatalf("artifact = %+v", result.Artifact)
			}
			select {
			case <-updated:
			case <-time.After(2 * time.Second):
				t.Fatal("status update not triggered")
			}
			if tt.command == "cancel" && tt.recorder.cancels != 1 {
				t.Fatalf("cancels = %d, want 1", tt.recorder.cancels)
			}
		})
	}
}

func TestHandleUpdateSettings(t *testing.T) {
	h, cfg := newTestHandler(t, &fakeRecorder{}, nil)

	data, err := json.Marshal(map[string]any{
		"audio_input":          "hw:2",
		"codec":                "mp3",
		"max_duration_seconds": 900,
		"retention_days":       99999, // out of range, ignored
		"webhook_url":          "http://example.com/hook",
		"email_smtp_host":      "smtp.example.com",
		"email_recipients":     "ops@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Handle(WSCommand{Type: "update_settings", Data: data}, make(chanResponder, 1), func() {})

	snap := cfg.Snapshot()
	if snap.AudioInput != "hw:2" || snap.AudioCodec != "mp3" || snap.MaxDurationSeconds != 900 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.RetentionDays != config.DefaultRetentionDays {
		t.Fatalf("retention = %d, want default", snap.RetentionDays)
	}
	if snap.WebhookURL != "http://example.com/hook" || snap.EmailSMTPHost != "smtp.example.com" {
		t.Fatalf("notifications = %+v", snap)
	}
	if snap.EmailSMTPPort != config.DefaultEmailSMTPPort {
		t.Fatalf("email port = %d, want default", snap.EmailSMTPPort)
	}
}

func TestHandleTest(t *testing.T) {
	triggers := map[string]func() error{
		"webhook": func() error { return nil },
		"email":   func() error { return errors.New("SMTP host not configured") },
	}
	h, _ := newTestHandler(t, &fakeRecorder{}, triggers)
	conn := make(chanResponder, 1)

	h.Handle(WSCommand{Type: "test_webhook"}, conn, func() {})
	if r := conn.next(t).(types.WSTestResult); !r.Success || r.TestType != "webhook" {
		t.Fatalf("webhook result = %+v", r)
	}

	h.Handle(WSCommand{Type: "test_email"}, conn, func() {})
	if r := conn.next(t).(types.WSTestResult); r.Success || r.Error != "SMTP host not configured" {
		t.Fatalf("email result = %+v", r)
	}
}

func TestHandleViewEventLog(t *testing.T) {
	h, cfg := newTestHandler(t, &fakeRecorder{}, nil)
	conn := make(chanResponder, 1)

	h.Handle(WSCommand{Type: "view_event_log"}, conn, func() {})
	if r := conn.next(t).(types.WSEventLogResult); r.Success {
		t.Fatalf("unconfigured log result = %+v", r)
	}

	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	if err := cfg.SetLogPath(logPath); err != nil {
		t.Fatal(err)
	}
	if err := notify.LogArtifactSaved(logPath, "sess", types.ArtifactInfo{Name: "audio-1.webm"}); err != nil {
		t.Fatal(err)
	}

	h.Handle(WSCommand{Type: "view_event_log"}, conn, func() {})
	r := conn.next(t).(types.WSEventLogResult)
	if !r.Success || r.Path != logPath || len(r.Entries) != 1 || r.Entries[0].Artifact != "audio-1.webm" {
		t.Fatalf("event log result = %+v", r)
	}
}
