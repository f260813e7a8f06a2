package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
	"golang.org/x/mod/semver"
)

const (
	githubRepo           = "oszuidwest/zwfm-capture"
	versionCheckInterval = 24 * time.Hour
	versionCheckDelay    = 30 * time.Second
	versionCheckTimeout  = 30 * time.Second
	versionMaxAttempts   = 3
	versionRetryDelay    = time.Minute
)

// latestReleaseURL is the GitHub API endpoint for the newest published release.
const latestReleaseURL = "https://api.github.com/repos/" + githubRepo + "/releases/latest"

// errRetryable marks a check failure worth retrying within the same cycle.
var errRetryable = errors.New("temporary failure")

// VersionChecker periodically asks GitHub for the newest release so the web
// interface can offer an update hint.
type VersionChecker struct {
	url    string
	client *http.Client

	mu     sync.RWMutex
	latest string
	etag   string
}

// NewVersionChecker returns a checker for the project's GitHub releases.
// Call Run to start polling.
func NewVersionChecker() *VersionChecker {
	return newVersionChecker(latestReleaseURL)
}

func newVersionChecker(url string) *VersionChecker {
	return &VersionChecker{url: url, client: &http.Client{Timeout: versionCheckTimeout}}
}

// Run checks once after a short delay and then daily until ctx is cancelled.
func (vc *VersionChecker) Run(ctx context.Context) {
	delay := time.NewTimer(versionCheckDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(versionCheckInterval)
	defer ticker.Stop()
	for {
		vc.checkWithRetry(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// checkWithRetry runs check, retrying temporary failures with backoff.
func (vc *VersionChecker) checkWithRetry(ctx context.Context) {
	backoff := util.NewBackoff(versionRetryDelay, 4*versionRetryDelay)
	for attempt := 1; ; attempt++ {
		err := vc.check(ctx)
		if err == nil {
			return
		}
		slog.Debug("version check failed", "attempt", attempt, "error", err)
		if !errors.Is(err, errRetryable) || attempt == versionMaxAttempts {
			return
		}
		if backoff.Wait(ctx) != nil {
			return
		}
	}
}

// githubRelease is the subset of the GitHub release payload that is used.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check fetches the latest release. A nil error means nothing is left to do
// this cycle; errors wrapping errRetryable may succeed on a later attempt.
func (vc *VersionChecker) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.url, nil)
	if err != nil {
		return util.WrapError("create version request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent())

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer util.SafeCloseFunc(resp.Body, "version check response body")()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		// Unchanged since the last check, or nothing released yet.
		return nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", errRetryable, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return fmt.Errorf("%w: decode release: %v", errRetryable, err)
	}
	if release.Draft || release.Prerelease {
		return nil
	}
	if release.TagName == "" {
		return errors.New("release has no tag")
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(release.TagName)
	if etag := resp.Header.Get("ETag"); etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()
	return nil
}

// GetInfo returns the running and latest known versions for the frontend.
func (vc *VersionChecker) GetInfo() types.VersionInfo {
	vc.mu.RLock()
	latest := vc.latest
	vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if latest != "" && semver.IsValid(canonicalVersion(current)) {
		info.UpdateAvail = isNewerVersion(latest, current)
	}
	return info
}

// normalizeVersion strips whitespace and a leading "v".
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// canonicalVersion returns v in the "v"-prefixed form semver expects.
func canonicalVersion(v string) string {
	return "v" + normalizeVersion(v)
}

// isNewerVersion reports whether latest is a higher semantic version than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare(canonicalVersion(latest), canonicalVersion(current)) > 0
}
