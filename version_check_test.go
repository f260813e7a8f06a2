package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v1.10.0", "1.9.0", true},
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "1.0.1", false},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := isNewerVersion(tt.latest, tt.current); got != tt.want {
			t.Fatalf("isNewerVersion(%q, %q) = %v, want %v", tt.latest, tt.current, got, tt.want)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	if got := normalizeVersion(" v1.2.3\n"); got != "1.2.3" {
		t.Fatalf("normalizeVersion = %q, want 1.2.3", got)
	}
}

func TestVersionCheckUsesETag(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"tag_name":"v9.9.9"}`))
	}))
	defer ts.Close()

	vc := newVersionChecker(ts.URL)
	if err := vc.check(context.Background()); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := vc.check(context.Background()); err != nil {
		t.Fatalf("conditional check: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
	if info := vc.GetInfo(); info.Latest != "9.9.9" {
		t.Fatalf("latest = %q, want 9.9.9", info.Latest)
	}
}

func TestVersionCheckSkipsPrerelease(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v2.0.0-rc1","prerelease":true}`))
	}))
	defer ts.Close()

	vc := newVersionChecker(ts.URL)
	if err := vc.check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if info := vc.GetInfo(); info.Latest != "" || info.UpdateAvail {
		t.Fatalf("prerelease recorded: %+v", info)
	}
}

func TestVersionCheckRetriesServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	err := newVersionChecker(ts.URL).check(context.Background())
	if !errors.Is(err, errRetryable) {
		t.Fatalf("check = %v, want retryable error", err)
	}
}

func TestVersionCheckClientErrorIsFinal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	err := newVersionChecker(ts.URL).check(context.Background())
	if err == nil || errors.Is(err, errRetryable) {
		t.Fatalf("check = %v, want non-retryable error", err)
	}
}

func TestVersionCheckerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newVersionChecker("http://127.0.0.1:1").Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
