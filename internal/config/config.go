// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// Configuration defaults.
const (
	DefaultWebPort        = 8080
	DefaultWebUsername    = "admin"
	DefaultWebPassword    = "capture"
	DefaultRecordingPath  = "recordings"
	DefaultRetentionDays  = 30
	DefaultEmailSMTPPort  = 587
	DefaultEmailFromName  = "ZuidWest FM Capture"
	DefaultLogLevel       = "info"
	DefaultLogMaxSizeMB   = 10
	DefaultLogMaxBackups  = 5
	MaxRecordingDuration  = 4 * 60 * 60 // seconds
	MaxStartRetries       = 10
	MaxRetentionDays      = 3650
)

// WebConfig contains web server configuration.
type WebConfig struct {
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AudioConfig contains audio input configuration.
type AudioConfig struct {
	Input            string `json:"input"`
	Codec            string `json:"codec"`
	SampleRate       int    `json:"sample_rate,omitempty"`
	EchoCancellation *bool  `json:"echo_cancellation,omitempty"`
	NoiseSuppression *bool  `json:"noise_suppression,omitempty"`
}

// RecordingConfig contains artifact storage and session limits.
type RecordingConfig struct {
	Path               string `json:"path"`
	MaxDurationSeconds int    `json:"max_duration_seconds,omitempty"`
	RetentionDays      int    `json:"retention_days,omitempty"`
	StartRetries       *int   `json:"start_retries,omitempty"`
}

// EmailConfig contains email notification configuration.
type EmailConfig struct {
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	FromName   string `json:"from_name,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipients string `json:"recipients,omitempty"`
}

// NotificationsConfig contains all notification configuration.
type NotificationsConfig struct {
	WebhookURL string      `json:"webhook_url,omitempty"`
	LogPath    string      `json:"log_path,omitempty"`
	Email      EmailConfig `json:"email,omitempty"`
}

// LogConfig contains application log configuration.
type LogConfig struct {
	Level      string `json:"level,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	Web           WebConfig           `json:"web"`
	Audio         AudioConfig         `json:"audio"`
	Recording     RecordingConfig     `json:"recording"`
	Notifications NotificationsConfig `json:"notifications,omitempty"`
	Log           LogConfig           `json:"log,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		Web: WebConfig{
			Port:     DefaultWebPort,
			Username: DefaultWebUsername,
			Password: DefaultWebPassword,
		},
		Audio: AudioConfig{
			Input: defaultAudioInput(),
			Codec: types.DefaultCodec,
		},
		Recording: RecordingConfig{
			Path: defaultRecordingPath(filePath),
		},
		Notifications: NotificationsConfig{},
		Log:           LogConfig{Level: DefaultLogLevel},
		filePath:      filePath,
	}
}

// defaultAudioInput returns the default audio input device for the current platform.
func defaultAudioInput() string {
	switch runtime.GOOS {
	case "darwin":
		return ":0"
	case "windows":
		return "" // Auto-detect
	default:
		return "default"
	}
}

// defaultRecordingPath places recordings next to the config file.
func defaultRecordingPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), DefaultRecordingPath)
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()
	return c.validateLocked()
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.Web.Port == 0 {
		c.Web.Port = DefaultWebPort
	}
	if c.Web.Username == "" {
		c.Web.Username = DefaultWebUsername
	}
	if c.Web.Password == "" {
		c.Web.Password = DefaultWebPassword
	}
	if c.Audio.Input == "" {
		c.Audio.Input = defaultAudioInput()
	}
	if _, ok := types.CodecPresets[c.Audio.Codec]; !ok {
		c.Audio.Codec = types.DefaultCodec
	}
	if c.Recording.Path == "" {
		c.Recording.Path = defaultRecordingPath(c.filePath)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// validateLocked checks loaded values. Caller must hold c.mu.
func (c *Config) validateLocked() error {
	checks := []*util.ValidationError{
		util.ValidatePort("web.port", c.Web.Port),
		util.ValidateRange("recording.max_duration_seconds", c.Recording.MaxDurationSeconds, 0, MaxRecordingDuration),
		util.ValidateRange("recording.retention_days", c.Recording.RetentionDays, 0, MaxRetentionDays),
		util.ValidateURL("notifications.webhook_url", c.Notifications.WebhookURL),
	}
	if c.Audio.SampleRate != 0 {
		checks = append(checks, util.ValidateRange("audio.sample_rate", c.Audio.SampleRate, 8000, 192000))
	}
	if c.Recording.StartRetries != nil {
		checks = append(checks, util.ValidateRange("recording.start_retries", *c.Recording.StartRetries, 0, MaxStartRetries))
	}
	for _, v := range checks {
		if v != nil {
			return fmt.Errorf("invalid config: %s", v.Message)
		}
	}
	return nil
}

// Save writes the configuration to file.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// WebPort returns the web server port.
func (c *Config) WebPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Web.Port
}

// WebUser returns the web authentication username.
func (c *Config) WebUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Web.Username
}

// WebPassword returns the web authentication password.
func (c *Config) WebPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Web.Password
}

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// AudioCodec returns the configured codec preset name.
func (c *Config) AudioCodec() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Codec
}

// SetAudioCodec updates the codec and saves the configuration.
func (c *Config) SetAudioCodec(codec string) error {
	if _, ok := types.CodecPresets[codec]; !ok {
		return fmt.Errorf("unknown codec: %s", codec)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Codec = codec
	return c.saveLocked()
}

// Constraints returns the device constraints derived from the audio section.
// Echo cancellation and noise suppression default to on.
func (c *Config) Constraints() capture.Constraints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.constraintsLocked()
}

func (c *Config) constraintsLocked() capture.Constraints {
	con := capture.DefaultConstraints()
	con.SampleRate = cmp.Or(c.Audio.SampleRate, capture.DefaultSampleRate)
	if c.Audio.EchoCancellation != nil {
		con.EchoCancellation = *c.Audio.EchoCancellation
	}
	if c.Audio.NoiseSuppression != nil {
		con.NoiseSuppression = *c.Audio.NoiseSuppression
	}
	return con
}

// RecordingPath returns the directory where artifacts are stored.
func (c *Config) RecordingPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recording.Path
}

// MaxDurationSeconds returns the maximum recording length, 0 for unlimited.
func (c *Config) MaxDurationSeconds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recording.MaxDurationSeconds
}

// SetMaxDurationSeconds updates the maximum recording length and saves the configuration.
func (c *Config) SetMaxDurationSeconds(seconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recording.MaxDurationSeconds = seconds
	return c.saveLocked()
}

// RetentionDays returns how long artifacts are kept, 0 to keep forever.
func (c *Config) RetentionDays() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cmp.Or(c.Recording.RetentionDays, DefaultRetentionDays)
}

// SetRetentionDays updates artifact retention and saves the configuration.
func (c *Config) SetRetentionDays(days int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recording.RetentionDays = days
	return c.saveLocked()
}

// StartRetries returns how many extra start attempts follow a device error.
func (c *Config) StartRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Recording.StartRetries == nil {
		return types.DefaultRetries
	}
	return *c.Recording.StartRetries
}

// WebhookURL returns the configured webhook URL for notifications.
func (c *Config) WebhookURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications.WebhookURL
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	if v := util.ValidateURL("webhook_url", url); v != nil {
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.WebhookURL = url
	return c.saveLocked()
}

// LogPath returns the configured event log file path.
func (c *Config) LogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications.LogPath
}

// SetLogPath updates the event log file path and saves the configuration.
func (c *Config) SetLogPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.LogPath = path
	return c.saveLocked()
}

// SetEmailConfig updates all email configuration fields and saves.
func (c *Config) SetEmailConfig(host string, port int, fromName, username, password, recipients string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Email.Host = host
	c.Notifications.Email.Port = port
	c.Notifications.Email.FromName = fromName
	c.Notifications.Email.Username = username
	c.Notifications.Email.Password = password
	c.Notifications.Email.Recipients = recipients
	return c.saveLocked()
}

// LogSettings returns the application log configuration with defaults applied.
func (c *Config) LogSettings() LogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return LogConfig{
		Level:      cmp.Or(c.Log.Level, DefaultLogLevel),
		File:       c.Log.File,
		MaxSizeMB:  cmp.Or(c.Log.MaxSizeMB, DefaultLogMaxSizeMB),
		MaxBackups: cmp.Or(c.Log.MaxBackups, DefaultLogMaxBackups),
	}
}

// Snapshot contains a point-in-time copy of all configuration values.
// Use this instead of multiple individual getters to reduce mutex contention.
type Snapshot struct {
	// Web
	WebPort     int
	WebUser     string
	WebPassword string

	// Audio
	AudioInput  string
	AudioCodec  string
	Constraints capture.Constraints

	// Recording
	RecordingPath      string
	MaxDurationSeconds int
	RetentionDays      int

	// Notifications
	WebhookURL string
	LogPath    string

	// Email
	EmailSMTPHost   string
	EmailSMTPPort   int
	EmailFromName   string
	EmailUsername   string
	EmailPassword   string
	EmailRecipients string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		// Web
		WebPort:     c.Web.Port,
		WebUser:     c.Web.Username,
		WebPassword: c.Web.Password,

		// Audio
		AudioInput:  c.Audio.Input,
		AudioCodec:  c.Audio.Codec,
		Constraints: c.constraintsLocked(),

		// Recording (with defaults)
		RecordingPath:      c.Recording.Path,
		MaxDurationSeconds: c.Recording.MaxDurationSeconds,
		RetentionDays:      cmp.Or(c.Recording.RetentionDays, DefaultRetentionDays),

		// Notifications
		WebhookURL: c.Notifications.WebhookURL,
		LogPath:    c.Notifications.LogPath,

		// Email (with defaults)
		EmailSMTPHost:   c.Notifications.Email.Host,
		EmailSMTPPort:   cmp.Or(c.Notifications.Email.Port, DefaultEmailSMTPPort),
		EmailFromName:   cmp.Or(c.Notifications.Email.FromName, DefaultEmailFromName),
		EmailUsername:   c.Notifications.Email.Username,
		EmailPassword:   c.Notifications.Email.Password,
		EmailRecipients: c.Notifications.Email.Recipients,
	}
}

// HasWebhook returns true if a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasEmail returns true if email notifications are configured.
func (s *Snapshot) HasEmail() bool {
	return s.EmailSMTPHost != "" && s.EmailRecipients != ""
}

// HasLogPath returns true if a log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}
