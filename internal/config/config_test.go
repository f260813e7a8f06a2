package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/types"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.WebPort != DefaultWebPort {
		t.Fatalf("WebPort = %d, want %d", snap.WebPort, DefaultWebPort)
	}
	if snap.AudioCodec != types.DefaultCodec {
		t.Fatalf("AudioCodec = %q, want %q", snap.AudioCodec, types.DefaultCodec)
	}
	if snap.Constraints != capture.DefaultConstraints() {
		t.Fatalf("Constraints = %+v, want defaults", snap.Constraints)
	}
	if snap.RetentionDays != DefaultRetentionDays {
		t.Fatalf("RetentionDays = %d, want %d", snap.RetentionDays, DefaultRetentionDays)
	}
	if want := filepath.Join(filepath.Dir(path), DefaultRecordingPath); snap.RecordingPath != want {
		t.Fatalf("RecordingPath = %q, want %q", snap.RecordingPath, want)
	}
	if cfg.StartRetries() != types.DefaultRetries {
		t.Fatalf("StartRetries = %d, want %d", cfg.StartRetries(), types.DefaultRetries)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "web": {"port": 9090},
  "audio": {"input": "hw:1", "codec": "flac", "sample_rate": 48000, "echo_cancellation": false},
  "recording": {"path": "/srv/rec", "max_duration_seconds": 600, "start_retries": 0},
  "log": {"level": "debug"}
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WebPort() != 9090 || cfg.WebUser() != DefaultWebUsername {
		t.Fatalf("web = %d/%s", cfg.WebPort(), cfg.WebUser())
	}
	if cfg.AudioInput() != "hw:1" {
		t.Fatalf("AudioInput = %q", cfg.AudioInput())
	}
	if cfg.AudioCodec() != types.DefaultCodec {
		t.Fatalf("unknown codec not replaced: %q", cfg.AudioCodec())
	}
	c := cfg.Constraints()
	if c.EchoCancellation || !c.NoiseSuppression || c.SampleRate != 48000 {
		t.Fatalf("Constraints = %+v", c)
	}
	if cfg.RecordingPath() != "/srv/rec" || cfg.MaxDurationSeconds() != 600 {
		t.Fatalf("recording = %q/%d", cfg.RecordingPath(), cfg.MaxDurationSeconds())
	}
	if cfg.StartRetries() != 0 {
		t.Fatalf("StartRetries = %d, want 0", cfg.StartRetries())
	}
	if ls := cfg.LogSettings(); ls.Level != "debug" || ls.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("LogSettings = %+v", ls)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"port", `{"web": {"port": 70000}}`, "web.port"},
		{"sample rate", `{"audio": {"sample_rate": 100}}`, "audio.sample_rate"},
		{"retries", `{"recording": {"start_retries": 50}}`, "recording.start_retries"},
		{"duration", `{"recording": {"max_duration_seconds": -1}}`, "recording.max_duration_seconds"},
		{"webhook", `{"notifications": {"webhook_url": "hooks.example.com"}}`, "notifications.webhook_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			err := New(path).Load()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("got %v, want error mentioning %s", err, tt.field)
			}
		})
	}
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	if err := cfg.SetAudioCodec("mp3"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetAudioCodec("wav"); err == nil {
		t.Fatal("SetAudioCodec accepted an unknown codec")
	}
	if err := cfg.SetWebhookURL("not a url"); err == nil {
		t.Fatal("SetWebhookURL accepted an invalid URL")
	}
	if err := cfg.SetWebhookURL("http://example.com/hook"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetEmailConfig("smtp.example.com", 0, "", "user@example.com", "secret", "ops@example.com"); err != nil {
		t.Fatal(err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	snap := reloaded.Snapshot()
	if snap.AudioCodec != "mp3" || !snap.HasWebhook() || !snap.HasEmail() || snap.HasLogPath() {
		t.Fatalf("reloaded snapshot = %+v", snap)
	}
	if snap.EmailSMTPPort != DefaultEmailSMTPPort || snap.EmailFromName != DefaultEmailFromName {
		t.Fatalf("email defaults not applied: %d %q", snap.EmailSMTPPort, snap.EmailFromName)
	}
}
