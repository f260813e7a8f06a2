package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/notify"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// Command timeouts. Start covers device retries with backoff.
const (
	startTimeout = 30 * time.Second
	stopTimeout  = 2 * types.ShutdownTimeout
)

// maxEventLogEntries is how many event log lines view_event_log returns.
const maxEventLogEntries = 100

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Responder sends a JSON message back to the client that issued a command.
type Responder interface {
	WriteJSON(v any) error
}

// Recorder controls capture sessions.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*types.ArtifactInfo, error)
	Cancel()
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg          *config.Config
	recorder     Recorder
	testTriggers map[string]func() error
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, recorder Recorder, testTriggers map[string]func() error) *CommandHandler {
	return &CommandHandler{
		cfg:          cfg,
		recorder:     recorder,
		testTriggers: testTriggers,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Capture commands run in the background and answer with a command_result
// message; triggerStatusUpdate is called once the action has taken effect.
func (h *CommandHandler) Handle(cmd WSCommand, conn Responder, triggerStatusUpdate func()) {
	switch cmd.Type {
	case "start", "stop", "cancel":
		go func() {
			h.handleCapture(cmd.Type, conn)
			triggerStatusUpdate()
		}()
		return
	case "update_settings":
		h.handleUpdateSettings(cmd)
	case "test_webhook", "test_log", "test_email":
		h.handleTest(conn, cmd.Type)
	case "view_event_log":
		h.handleViewEventLog(conn)
	default:
		slog.Warn("unknown WebSocket command type", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// handleCapture runs a capture command and reports the outcome to the client.
func (h *CommandHandler) handleCapture(command string, conn Responder) {
	result := types.WSCommandResult{
		Type:    "command_result",
		Command: command,
		Success: true,
	}

	var err error
	switch command {
	case "start":
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		err = h.recorder.Start(ctx)
		cancel()
	case "stop":
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		result.Artifact, err = h.recorder.Stop(ctx)
		cancel()
	case "cancel":
		h.recorder.Cancel()
	}

	if err != nil {
		slog.Warn("capture command failed", "command", command, "error", err)
		result.Success = false
		result.Error = err.Error()
		result.ErrorKind = string(capture.KindOf(err))
	}

	if wsErr := conn.WriteJSON(result); wsErr != nil {
		slog.Error("failed to send command response", "command", command, "error", wsErr)
	}
}

// updateIntSetting validates and updates an integer setting.
func updateIntSetting(value *int, minVal, maxVal int, name string, setter func(int) error) {
	if value == nil {
		return
	}
	v := *value
	if err := util.ValidateRange(name, v, minVal, maxVal); err != nil {
		slog.Warn("update_settings: validation failed", "setting", name, "error", err.Message)
		return
	}
	slog.Info("update_settings: changing setting", "setting", name, "value", v)
	if err := setter(v); err != nil {
		slog.Error("update_settings: failed to save", "error", err)
	}
}

// updateStringSetting updates a string setting.
func updateStringSetting(value *string, name string, setter func(string) error) {
	if value == nil {
		return
	}
	slog.Info("update_settings: changing setting", "setting", name)
	if err := setter(*value); err != nil {
		slog.Error("update_settings: failed to save", "error", err)
	}
}

// settingsUpdate is the payload of update_settings. Absent fields are left unchanged.
type settingsUpdate struct {
	AudioInput         *string `json:"audio_input"`
	Codec              *string `json:"codec"`
	MaxDurationSeconds *int    `json:"max_duration_seconds"`
	RetentionDays      *int    `json:"retention_days"`
	WebhookURL         *string `json:"webhook_url"`
	LogPath            *string `json:"log_path"`
	EmailSMTPHost      *string `json:"email_smtp_host"`
	EmailSMTPPort      *int    `json:"email_smtp_port"`
	EmailFromName      *string `json:"email_from_name"`
	EmailUsername      *string `json:"email_username"`
	EmailPassword      *string `json:"email_password"`
	EmailRecipients    *string `json:"email_recipients"`
}

func (u *settingsUpdate) hasEmail() bool {
	return u.EmailSMTPHost != nil || u.EmailSMTPPort != nil ||
		u.EmailFromName != nil || u.EmailUsername != nil ||
		u.EmailPassword != nil || u.EmailRecipients != nil
}

// handleUpdateSettings applies settings. They take effect from the next recording.
func (h *CommandHandler) handleUpdateSettings(cmd WSCommand) {
	var settings settingsUpdate
	if err := json.Unmarshal(cmd.Data, &settings); err != nil {
		slog.Warn("update_settings: invalid JSON data", "error", err)
		return
	}

	if settings.AudioInput != nil {
		if err := util.ValidateMaxLength("audio_input", *settings.AudioInput, 256); err != nil {
			slog.Warn("update_settings: validation failed", "error", err.Message)
		} else {
			updateStringSetting(settings.AudioInput, "audio input", h.cfg.SetAudioInput)
		}
	}
	updateStringSetting(settings.Codec, "codec", h.cfg.SetAudioCodec)
	updateIntSetting(settings.MaxDurationSeconds, 0, config.MaxRecordingDuration, "max duration", h.cfg.SetMaxDurationSeconds)
	updateIntSetting(settings.RetentionDays, 0, config.MaxRetentionDays, "retention days", h.cfg.SetRetentionDays)
	updateStringSetting(settings.WebhookURL, "webhook URL", h.cfg.SetWebhookURL)
	updateStringSetting(settings.LogPath, "log path", h.cfg.SetLogPath)

	if settings.hasEmail() {
		// Start from current values for fields not being updated
		snap := h.cfg.Snapshot()
		host := snap.EmailSMTPHost
		port := snap.EmailSMTPPort
		fromName := snap.EmailFromName
		username := snap.EmailUsername
		password := snap.EmailPassword
		recipients := snap.EmailRecipients
		if settings.EmailSMTPHost != nil {
			host = *settings.EmailSMTPHost
		}
		if settings.EmailSMTPPort != nil {
			port = max(1, min(*settings.EmailSMTPPort, 65535))
		}
		if settings.EmailFromName != nil {
			fromName = *settings.EmailFromName
		}
		if settings.EmailUsername != nil {
			username = *settings.EmailUsername
		}
		if settings.EmailPassword != nil {
			password = *settings.EmailPassword
		}
		if settings.EmailRecipients != nil {
			recipients = *settings.EmailRecipients
		}

		slog.Info("update_settings: updating email configuration")
		if err := h.cfg.SetEmailConfig(host, port, fromName, username, password, recipients); err != nil {
			slog.Error("update_settings: failed to save email config", "error", err)
		}
	}
}

// handleTest executes a notification test and sends the result to the client.
// testCmd should be in format "test_<type>" (e.g., "test_email", "test_webhook").
func (h *CommandHandler) handleTest(conn Responder, testCmd string) {
	testType := strings.TrimPrefix(testCmd, "test_")
	trigger, ok := h.testTriggers[testType]
	if !ok {
		slog.Warn("unknown test type", "command", testCmd)
		return
	}

	go func() {
		result := types.WSTestResult{
			Type:     "test_result",
			TestType: testType,
			Success:  true,
		}

		if err := trigger(); err != nil {
			slog.Error("test failed", "command", testCmd, "error", err)
			result.Success = false
			result.Error = err.Error()
		} else {
			slog.Info("test succeeded", "command", testCmd)
		}

		if wsErr := conn.WriteJSON(result); wsErr != nil {
			slog.Error("failed to send test response", "command", testCmd, "error", wsErr)
		}
	}()
}

// handleViewEventLog reads and returns the most recent capture events.
func (h *CommandHandler) handleViewEventLog(conn Responder) {
	go func() {
		result := types.WSEventLogResult{
			Type:    "event_log_result",
			Success: true,
		}

		logPath := h.cfg.LogPath()
		if logPath == "" {
			result.Success = false
			result.Error = "Log file path not configured"
		} else if entries, err := notify.ReadEventLog(logPath, maxEventLogEntries); err != nil {
			result.Success = false
			result.Error = err.Error()
		} else {
			result.Entries = entries
			result.Path = logPath
		}

		if wsErr := conn.WriteJSON(result); wsErr != nil {
			slog.Error("failed to send event log response", "error", wsErr)
		}
	}()
}
