// Package notify provides notification services for capture events.
package notify

import (
	"sync"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// Event names used in webhook payloads and the event log.
const (
	EventArtifactSaved = "artifact_saved"
	EventCaptureFailed = "capture_failed"
	EventTest          = "test"
)

// CaptureNotifier fans capture events out to the configured webhook, email
// and event log. Each channel is sent on its own goroutine; failures are
// logged and never returned.
type CaptureNotifier struct {
	cfg *config.Config
	wg  sync.WaitGroup
}

// NewCaptureNotifier returns a CaptureNotifier configured with the given config.
func NewCaptureNotifier(cfg *config.Config) *CaptureNotifier {
	return &CaptureNotifier{cfg: cfg}
}

// ArtifactSaved notifies that a recording was stored.
func (n *CaptureNotifier) ArtifactSaved(sessionID string, artifact types.ArtifactInfo) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		n.send("Artifact webhook", func() error {
			return SendArtifactWebhook(cfg.WebhookURL, sessionID, artifact)
		})
	}
	if cfg.HasEmail() {
		emailCfg := emailConfig(&cfg)
		n.send("Artifact email", func() error {
			return SendArtifactEmail(emailCfg, sessionID, artifact)
		})
	}
	if cfg.HasLogPath() {
		n.send("Artifact log", func() error {
			return LogArtifactSaved(cfg.LogPath, sessionID, artifact)
		})
	}
}

// CaptureFailed notifies that a recording could not be started or completed.
func (n *CaptureNotifier) CaptureFailed(sessionID string, err error) {
	if err == nil {
		return
	}
	cfg := n.cfg.Snapshot()
	kind := string(capture.KindOf(err))
	msg := err.Error()

	if cfg.HasWebhook() {
		n.send("Failure webhook", func() error {
			return SendFailureWebhook(cfg.WebhookURL, sessionID, kind, msg)
		})
	}
	if cfg.HasEmail() {
		emailCfg := emailConfig(&cfg)
		n.send("Failure email", func() error {
			return SendFailureEmail(emailCfg, sessionID, kind, msg)
		})
	}
	if cfg.HasLogPath() {
		n.send("Failure log", func() error {
			return LogCaptureFailed(cfg.LogPath, sessionID, kind, msg)
		})
	}
}

// Wait blocks until all in-flight notifications have completed.
func (n *CaptureNotifier) Wait() {
	n.wg.Wait()
}

// TestTriggers returns the notification tests keyed by channel name.
func (n *CaptureNotifier) TestTriggers() map[string]func() error {
	return map[string]func() error{
		"webhook": func() error {
			return SendTestWebhook(n.cfg.WebhookURL())
		},
		"email": func() error {
			cfg := n.cfg.Snapshot()
			return SendTestEmail(emailConfig(&cfg))
		},
		"log": func() error {
			return WriteTestLog(n.cfg.LogPath())
		},
	}
}

func (n *CaptureNotifier) send(notifyType string, fn func() error) {
	n.wg.Go(func() {
		util.LogNotifyResult(fn, notifyType, true)
	})
}

// emailConfig builds the SMTP settings from a config snapshot.
func emailConfig(cfg *config.Snapshot) *EmailConfig {
	return &EmailConfig{
		Host:       cfg.EmailSMTPHost,
		Port:       cfg.EmailSMTPPort,
		FromName:   cfg.EmailFromName,
		Username:   cfg.EmailUsername,
		Password:   cfg.EmailPassword,
		Recipients: cfg.EmailRecipients,
	}
}
