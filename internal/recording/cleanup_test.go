package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRecording(t *testing.T, root string, at time.Time) string {
	t.Helper()
	dir := filepath.Join(root, at.Format(dateDirFormat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("audio-%d.webm", at.UnixMilli()))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCleanupRemovesExpiredRecordings(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	ancient := writeRecording(t, root, time.Date(2026, 2, 1, 10, 0, 0, 0, time.Local))
	expired := writeRecording(t, root, time.Date(2026, 3, 3, 8, 0, 0, 0, time.Local))
	kept := writeRecording(t, root, time.Date(2026, 3, 3, 18, 0, 0, 0, time.Local))
	recent := writeRecording(t, root, time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local))
	other := filepath.Join(root, "misc", "notes.txt")
	if err := os.MkdirAll(filepath.Dir(other), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCleanup(NewStore(root), func() int { return 7 })
	c.now = func() time.Time { return now }
	c.runCleanup()

	if exists(ancient) || exists(filepath.Dir(ancient)) {
		t.Fatal("expired day directory not removed")
	}
	if exists(expired) {
		t.Fatal("expired recording not removed")
	}
	for _, path := range []string{kept, recent, other} {
		if !exists(path) {
			t.Fatalf("%s was removed", path)
		}
	}
}

func TestCleanupKeepsEverythingWithoutRetention(t *testing.T) {
	root := t.TempDir()
	old := writeRecording(t, root, time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local))

	c := NewCleanup(NewStore(root), func() int { return 0 })
	c.runCleanup()

	if !exists(old) {
		t.Fatal("recording removed with retention disabled")
	}
}

func TestCleanupStartStop(t *testing.T) {
	c := NewCleanup(NewStore(t.TempDir()), func() int { return 1 })
	c.Start()
	c.Start()
	c.Stop()
	c.Stop()
}
