package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// webhookTimeout bounds a single webhook delivery.
const webhookTimeout = 10 * time.Second

// SendArtifactWebhook sends a POST request to the webhook URL when a recording is saved.
func SendArtifactWebhook(webhookURL, sessionID string, artifact types.ArtifactInfo) error {
	return sendWebhook(webhookURL, map[string]any{
		"event":        EventArtifactSaved,
		"session_id":   sessionID,
		"artifact":     artifact.Name,
		"content_type": artifact.ContentType,
		"size":         artifact.Size,
		"timestamp":    util.RFC3339Now(),
	})
}

// SendFailureWebhook sends a POST request to the webhook URL when a capture fails.
func SendFailureWebhook(webhookURL, sessionID, kind, message string) error {
	return sendWebhook(webhookURL, map[string]any{
		"event":      EventCaptureFailed,
		"session_id": sessionID,
		"error_kind": kind,
		"error":      message,
		"timestamp":  util.RFC3339Now(),
	})
}

// SendTestWebhook sends a test POST request to verify webhook configuration.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, map[string]any{
		"event":     EventTest,
		"message":   "This is a test notification from ZuidWest FM Capture",
		"timestamp": util.RFC3339Now(),
	})
}

// sendWebhook sends a POST request with JSON payload to the webhook URL.
func sendWebhook(webhookURL string, payload map[string]any) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: webhookTimeout}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
