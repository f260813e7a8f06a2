package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net/http"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/audio"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/notify"
	"github.com/oszuidwest/zwfm-capture/internal/recording"
	"github.com/oszuidwest/zwfm-capture/internal/server"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// statusArtifactLimit caps the recordings listed in each status message.
const statusArtifactLimit = 50

// Server is an HTTP server that provides the web interface for the capture service.
type Server struct {
	config   *config.Config
	manager  *recording.Manager
	sessions *server.SessionManager
	commands *server.CommandHandler
	version  *VersionChecker
}

// NewServer returns a new Server controlling the given recording manager.
func NewServer(cfg *config.Config, manager *recording.Manager, notifier *notify.CaptureNotifier, version *VersionChecker) *Server {
	return &Server{
		config:   cfg,
		manager:  manager,
		sessions: server.NewSessionManager(),
		commands: server.NewCommandHandler(cfg, manager, notifier.TestTriggers()),
		version:  version,
	}
}

// handleWebSocket streams capture status to the client and executes its commands.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer util.SafeCloseFunc(conn, "WebSocket connection")()

	// Channel to signal status update needed
	statusUpdate := make(chan struct{}, 1)
	done := make(chan struct{})
	triggerStatusUpdate := func() {
		select {
		case statusUpdate <- struct{}{}:
		default:
		}
	}

	// Goroutine to read and process commands from client
	go func() {
		defer close(done)
		for {
			var cmd server.WSCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			s.commands.Handle(cmd, conn, triggerStatusUpdate)
		}
	}()

	statusTicker := time.NewTicker(3 * time.Second)
	defer statusTicker.Stop()

	// Enumerating inputs spawns a process, so it happens once per connection.
	devices := audio.ListDevices(r.Context())
	sendStatus := func() error {
		return conn.WriteJSON(s.statusMessage(devices))
	}

	// Send initial status
	if err := sendStatus(); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-statusUpdate:
			if err := sendStatus(); err != nil {
				return
			}
		case <-statusTicker.C:
			if err := sendStatus(); err != nil {
				return
			}
		}
	}
}

// statusMessage builds the periodic status push.
func (s *Server) statusMessage(devices []types.AudioDevice) map[string]any {
	cfg := s.config.Snapshot()

	artifacts, err := s.manager.Store().List()
	if err != nil {
		slog.Warn("failed to list recordings", "error", err)
	}
	if len(artifacts) > statusArtifactLimit {
		artifacts = artifacts[:statusArtifactLimit]
	}

	codecs := make([]string, 0, len(types.CodecPresets))
	for name := range types.CodecPresets {
		codecs = append(codecs, name)
	}
	slices.Sort(codecs)

	return map[string]any{
		"type":      "status",
		"capture":   s.manager.Status(),
		"artifacts": artifacts,
		"devices":   devices,
		"settings": map[string]any{
			"audio_input":          cfg.AudioInput,
			"codec":                cfg.AudioCodec,
			"codecs":               codecs,
			"echo_cancellation":    cfg.Constraints.EchoCancellation,
			"noise_suppression":    cfg.Constraints.NoiseSuppression,
			"sample_rate":          cfg.Constraints.SampleRate,
			"max_duration_seconds": cfg.MaxDurationSeconds,
			"retention_days":       cfg.RetentionDays,
			"webhook_url":          cfg.WebhookURL,
			"log_path":             cfg.LogPath,
			"email_smtp_host":      cfg.EmailSMTPHost,
			"email_smtp_port":      cfg.EmailSMTPPort,
			"email_from_name":      cfg.EmailFromName,
			"email_username":       cfg.EmailUsername,
			"email_recipients":     cfg.EmailRecipients,
			"platform":             runtime.GOOS,
		},
		"version": s.version.GetInfo(),
	}
}

// handleArtifacts returns the stored recordings as JSON, newest first.
func (s *Server) handleArtifacts(w http.ResponseWriter, _ *http.Request) {
	artifacts, err := s.manager.Store().List()
	if err != nil {
		slog.Error("failed to list recordings", "error", err)
		http.Error(w, "failed to list recordings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, artifacts)
}

// handleArtifact serves a stored recording with its content type.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.manager.Store().Open(r.PathValue("name"))
	if errors.Is(err, recording.ErrArtifactNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to open recording", "name", r.PathValue("name"), "error", err)
		http.Error(w, "failed to open recording", http.StatusInternalServerError)
		return
	}
	defer util.SafeCloseFunc(f, "recording file")()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name}))
	http.ServeContent(w, r, info.Name, time.UnixMilli(info.CreatedAt), f)
}

// handleLoginPage renders the login form with a fresh CSRF token.
func (s *Server) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	s.renderLogin(w, "")
}

// handleLogin checks the submitted credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if !s.sessions.ValidateCSRFToken(r.PostForm.Get("csrf_token")) {
		w.WriteHeader(http.StatusForbidden)
		s.renderLogin(w, "Your session expired, please try again.")
		return
	}

	cfg := s.config.Snapshot()
	if !s.sessions.Login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"), cfg.WebUser, cfg.WebPassword) {
		slog.Warn("failed login attempt", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		s.renderLogin(w, "Invalid username or password.")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout ends the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, message string) {
	page := strings.Replace(loginHTML, "{{CSRF}}", s.sessions.CreateCSRFToken(), 1)
	page = strings.Replace(page, "{{ERROR}}", html.EscapeString(message), 1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(page)); err != nil {
		slog.Error("failed to write login page", "error", err)
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// WebSocket for all real-time communication
	mux.HandleFunc("GET /ws", s.sessions.RequireSession(s.handleWebSocket))

	mux.HandleFunc("GET /artifacts", s.sessions.RequireSession(s.handleArtifacts))
	mux.HandleFunc("GET /artifacts/{name}", s.sessions.RequireSession(s.handleArtifact))

	// Static files
	mux.HandleFunc("GET /", s.sessions.RequireLogin(s.handleStatic))

	return mux
}

// staticFile represents an embedded static file with its content type and content.
type staticFile struct {
	contentType string
	content     string
	name        string
}

// staticFiles maps URL paths to their corresponding static file definitions.
var staticFiles = map[string]staticFile{
	"/style.css": {
		contentType: "text/css",
		content:     styleCSS,
		name:        "style.css",
	},
	"/app.js": {
		contentType: "application/javascript",
		content:     appJS,
		name:        "app.js",
	},
}

// handleStatic serves the embedded static web interface files.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	// Handle index.html specially (requires template replacement)
	if path == "/index.html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := strings.Replace(indexHTML, "{{VERSION}}", Version, 1)
		page = strings.ReplaceAll(page, "{{YEAR}}", fmt.Sprintf("%d", time.Now().Year()))
		if _, err := w.Write([]byte(page)); err != nil {
			slog.Error("failed to write index.html", "error", err)
		}
		return
	}

	// Handle other static files via table lookup
	if file, ok := staticFiles[path]; ok {
		w.Header().Set("Content-Type", file.contentType)
		if _, err := w.Write([]byte(file.content)); err != nil {
			slog.Error("failed to write static file", "file", file.name, "error", err)
		}
		return
	}

	// File not found
	http.NotFound(w, r)
}

// Start begins listening and serving HTTP requests on the configured port.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.WebPort())
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
