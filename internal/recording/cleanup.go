package recording

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CleanupInterval is how often the cleanup runs.
const CleanupInterval = 1 * time.Hour

// Cleanup periodically deletes stored recordings older than the retention period.
type Cleanup struct {
	path          string
	retentionDays func() int
	now           func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewCleanup creates a Cleanup for the store. retentionDays is read on
// every run so configuration changes apply without a restart; a value of
// zero or less keeps everything.
func NewCleanup(store *Store, retentionDays func() int) *Cleanup {
	return &Cleanup{
		path:          store.Path(),
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start begins the cleanup goroutine.
func (c *Cleanup) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	slog.Info("recording cleanup started", "path", c.path, "interval", CleanupInterval)
}

// Stop stops the cleanup goroutine.
func (c *Cleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()
	slog.Info("recording cleanup stopped", "path", c.path)
}

// run is the main cleanup loop.
func (c *Cleanup) run() {
	defer c.wg.Done()

	// Run immediately on start
	c.runCleanup()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.runCleanup()
		}
	}
}

// runCleanup removes expired day directories and files.
func (c *Cleanup) runCleanup() {
	retentionDays := c.retentionDays()
	if c.path == "" || retentionDays <= 0 {
		return
	}

	cutoff := c.now().AddDate(0, 0, -retentionDays)
	slog.Debug("running recording cleanup", "path", c.path, "retention_days", retentionDays, "cutoff", cutoff.Format(dateDirFormat))

	entries, err := os.ReadDir(c.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		slog.Error("failed to read recording directory", "path", c.path, "error", err)
		return
	}

	var deletedFiles, deletedDirs int

	for _, entry := range entries {
		if !isDateDir(entry) {
			continue
		}
		dirDate, _ := time.ParseInLocation(dateDirFormat, entry.Name(), cutoff.Location())
		dirPath := filepath.Join(c.path, entry.Name())

		// A whole day older than the cutoff goes at once.
		if dirDate.AddDate(0, 0, 1).Before(cutoff) {
			files, err := os.ReadDir(dirPath)
			if err == nil {
				deletedFiles += len(files)
			}
			if err := os.RemoveAll(dirPath); err != nil {
				slog.Error("failed to remove old recording directory", "path", dirPath, "error", err)
			} else {
				deletedDirs++
				slog.Debug("removed old recording directory", "path", dirPath)
			}
			continue
		}

		deletedFiles += c.cleanupFilesInDir(dirPath, cutoff)
		if c.removeIfEmpty(dirPath) {
			deletedDirs++
		}
	}

	if deletedFiles > 0 || deletedDirs > 0 {
		slog.Info("recording cleanup completed", "deleted_files", deletedFiles, "deleted_dirs", deletedDirs)
	}
}

// cleanupFilesInDir removes recordings captured before cutoff and returns how many were removed.
func (c *Cleanup) cleanupFilesInDir(dirPath string, cutoff time.Time) int {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		return 0
	}

	var deleted int
	for _, file := range files {
		info, ok := artifactInfo(dirPath, file)
		if !ok || !time.UnixMilli(info.CreatedAt).Before(cutoff) {
			continue
		}
		if err := os.Remove(info.Path); err != nil {
			slog.Error("failed to remove old recording file", "path", info.Path, "error", err)
			continue
		}
		deleted++
		slog.Debug("removed old recording file", "path", info.Path)
	}
	return deleted
}

// removeIfEmpty removes the directory if it's empty.
func (c *Cleanup) removeIfEmpty(dirPath string) bool {
	files, err := os.ReadDir(dirPath)
	if err != nil || len(files) > 0 {
		return false
	}
	if err := os.Remove(dirPath); err != nil {
		slog.Warn("failed to remove empty directory", "path", dirPath, "error", err)
		return false
	}
	slog.Debug("removed empty recording directory", "path", dirPath)
	return true
}
