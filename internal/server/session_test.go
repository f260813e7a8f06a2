package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginSetsSessionCookie(t *testing.T) {
	sm := NewSessionManager()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	if sm.Login(rec, req, "admin", "wrong", "admin", "secret") {
		t.Fatal("login succeeded with a wrong password")
	}
	if !sm.Login(rec, req, "admin", "secret", "admin", "secret") {
		t.Fatal("login failed with valid credentials")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	if !sm.Validate(cookies[0].Value) {
		t.Fatal("session cookie not valid")
	}
}

func TestSessionExpiry(t *testing.T) {
	sm := NewSessionManager()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	token := sm.Create()
	if !sm.Validate(token) {
		t.Fatal("new session invalid")
	}
	now = now.Add(sessionDuration + time.Second)
	if sm.Validate(token) {
		t.Fatal("expired session still valid")
	}
	if sm.Validate("") {
		t.Fatal("empty token valid")
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	sm := NewSessionManager()
	token := sm.Create()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	sm.Logout(rec, req)

	if sm.Validate(token) {
		t.Fatal("session valid after logout")
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge != -1 {
		t.Fatalf("logout cookie = %+v", c)
	}
}

func TestCSRFTokenSingleUse(t *testing.T) {
	sm := NewSessionManager()
	token := sm.CreateCSRFToken()

	if !sm.ValidateCSRFToken(token) {
		t.Fatal("fresh CSRF token invalid")
	}
	if sm.ValidateCSRFToken(token) {
		t.Fatal("CSRF token accepted twice")
	}

	now := time.Now()
	sm.now = func() time.Time { return now }
	expiring := sm.CreateCSRFToken()
	now = now.Add(csrfTokenDuration + time.Second)
	if sm.ValidateCSRFToken(expiring) {
		t.Fatal("expired CSRF token accepted")
	}
}

func TestMiddleware(t *testing.T) {
	sm := NewSessionManager()
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	tests := []struct {
		name    string
		handler http.HandlerFunc
		cookie  string
		want    int
	}{
		{"page without session", sm.RequireLogin(ok), "", http.StatusFound},
		{"api without session", sm.RequireSession(ok), "", http.StatusUnauthorized},
		{"page with session", sm.RequireLogin(ok), sm.Create(), http.StatusNoContent},
		{"api with session", sm.RequireSession(ok), sm.Create(), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			tt.handler(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://capture.local:8080", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1", true},
		{"http://192.168.1.20", true},
		{"http://10.0.0.5:8080", true},
		{"https://evil.example.com", false},
		{"https://10.evil.example.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = "capture.local:8080"
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(req); got != tt.want {
			t.Fatalf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
