// Package server provides the HTTP session handling and WebSocket commands for the web interface.
package server

import (
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

const (
	sessionCookieName = "capture_session"
	sessionDuration   = 24 * time.Hour
	csrfTokenDuration = 10 * time.Minute
)

// SessionManager handles user authentication sessions and login CSRF tokens.
// Both are kept in memory; a restart logs everyone out.
type SessionManager struct {
	sessions   map[string]time.Time // token -> expiry
	csrfTokens map[string]time.Time // token -> expiry
	now        func() time.Time
	mu         sync.Mutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]time.Time),
		csrfTokens: make(map[string]time.Time),
		now:        time.Now,
	}
}

// generateToken creates a cryptographically secure random token.
func generateToken() string {
	b := make([]byte, 32)
	if _, err := cryptorand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// pruneLocked drops expired entries. Caller must hold sm.mu.
func pruneLocked(tokens map[string]time.Time, now time.Time) {
	for k, expiresAt := range tokens {
		if now.After(expiresAt) {
			delete(tokens, k)
		}
	}
}

// Create creates a new session and returns the token.
func (sm *SessionManager) Create() string {
	token := generateToken()
	if token == "" {
		return ""
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	pruneLocked(sm.sessions, now)
	sm.sessions[token] = now.Add(sessionDuration)
	return token
}

// Validate checks if a session token is valid.
func (sm *SessionManager) Validate(token string) bool {
	if token == "" {
		return false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	expiresAt, exists := sm.sessions[token]
	if !exists {
		return false
	}
	if sm.now().After(expiresAt) {
		delete(sm.sessions, token)
		return false
	}
	return true
}

// Delete removes a session token.
func (sm *SessionManager) Delete(token string) {
	if token == "" {
		return
	}
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// authenticated reports whether the request carries a valid session cookie.
func (sm *SessionManager) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	return err == nil && sm.Validate(cookie.Value)
}

// RequireLogin returns middleware that redirects unauthenticated page requests to /login.
func (sm *SessionManager) RequireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm.authenticated(r) {
			next(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

// RequireSession returns middleware that rejects unauthenticated API and
// WebSocket requests with 401 instead of a redirect.
func (sm *SessionManager) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm.authenticated(r) {
			next(w, r)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

// Login validates credentials and creates a session if valid.
// Returns true if login succeeded.
// Uses constant-time comparison to prevent timing attacks.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, username, password, configUser, configPass string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(configUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(configPass)) == 1
	if !userMatch || !passMatch {
		return false
	}

	token := sm.Create()
	if token == "" {
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}

// Logout clears the session cookie and deletes the session.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sm.Delete(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// CreateCSRFToken generates a new CSRF token for the login form.
func (sm *SessionManager) CreateCSRFToken() string {
	token := generateToken()
	if token == "" {
		return ""
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	pruneLocked(sm.csrfTokens, now)
	sm.csrfTokens[token] = now.Add(csrfTokenDuration)
	return token
}

// ValidateCSRFToken checks if a CSRF token is valid and removes it.
func (sm *SessionManager) ValidateCSRFToken(token string) bool {
	if token == "" {
		return false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	expiresAt, exists := sm.csrfTokens[token]
	if !exists {
		return false
	}
	delete(sm.csrfTokens, token)

	return !sm.now().After(expiresAt)
}
