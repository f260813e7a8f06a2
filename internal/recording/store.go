package recording

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// dateDirFormat is the layout of the per-day artifact directories.
const dateDirFormat = "2006-01-02"

// ErrArtifactNotFound is returned when no stored artifact has the requested name.
var ErrArtifactNotFound = errors.New("artifact not found")

// Store keeps finalized recordings on disk under {path}/{YYYY-MM-DD}/{name}.
type Store struct {
	path string
	mu   sync.Mutex // serializes name selection
}

// NewStore returns a Store rooted at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the root directory of the store.
func (s *Store) Path() string {
	return s.path
}

// Save writes the artifact to disk. An existing file is never overwritten;
// a numeric suffix is added instead.
func (s *Store) Save(a *capture.Artifact) (types.ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.path, a.CreatedAt.Format(dateDirFormat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.ArtifactInfo{}, util.WrapError("create recording directory", err)
	}

	ext := filepath.Ext(a.Name)
	base := strings.TrimSuffix(a.Name, ext)
	for i := 0; ; i++ {
		name := a.Name
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return types.ArtifactInfo{}, util.WrapError("create recording file", err)
		}

		if _, err := a.WriteTo(f); err != nil {
			util.SafeClose(f, "recording file")
			_ = os.Remove(path)
			return types.ArtifactInfo{}, util.WrapError("write recording file", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return types.ArtifactInfo{}, util.WrapError("close recording file", err)
		}

		return types.ArtifactInfo{
			Name:        name,
			Path:        path,
			ContentType: a.ContentType,
			Size:        a.Size,
			CreatedAt:   a.CreatedAt.UnixMilli(),
		}, nil
	}
}

// List returns all stored artifacts, newest first.
func (s *Store) List() ([]types.ArtifactInfo, error) {
	days, err := os.ReadDir(s.path)
	if os.IsNotExist(err) {
		return []types.ArtifactInfo{}, nil
	}
	if err != nil {
		return nil, util.WrapError("read recording directory", err)
	}

	artifacts := []types.ArtifactInfo{}
	for _, day := range days {
		if !isDateDir(day) {
			continue
		}
		dir := filepath.Join(s.path, day.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if info, ok := artifactInfo(dir, f); ok {
				artifacts = append(artifacts, info)
			}
		}
	}

	slices.SortFunc(artifacts, func(a, b types.ArtifactInfo) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return artifacts, nil
}

// Lookup finds a stored artifact by file name. Names that are not plain
// file names are rejected.
func (s *Store) Lookup(name string) (types.ArtifactInfo, error) {
	if !validArtifactName(name) {
		return types.ArtifactInfo{}, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}

	days, err := os.ReadDir(s.path)
	if err != nil && !os.IsNotExist(err) {
		return types.ArtifactInfo{}, util.WrapError("read recording directory", err)
	}
	for _, day := range days {
		if !isDateDir(day) {
			continue
		}
		dir := filepath.Join(s.path, day.Name())
		entry, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if info, ok := artifactInfo(dir, fs.FileInfoToDirEntry(entry)); ok {
			return info, nil
		}
	}
	return types.ArtifactInfo{}, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
}

// Open finds a stored artifact by name and opens it for reading.
func (s *Store) Open(name string) (*os.File, types.ArtifactInfo, error) {
	info, err := s.Lookup(name)
	if err != nil {
		return nil, types.ArtifactInfo{}, err
	}
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, types.ArtifactInfo{}, util.WrapError("open recording", err)
	}
	return f, info, nil
}

// validArtifactName reports whether name is a bare file name without path elements.
func validArtifactName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// isDateDir reports whether entry is a per-day artifact directory.
func isDateDir(entry fs.DirEntry) bool {
	if !entry.IsDir() {
		return false
	}
	_, err := time.Parse(dateDirFormat, entry.Name())
	return err == nil
}

// artifactInfo describes a stored recording file.
func artifactInfo(dir string, entry fs.DirEntry) (types.ArtifactInfo, bool) {
	if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
		return types.ArtifactInfo{}, false
	}
	fi, err := entry.Info()
	if err != nil {
		return types.ArtifactInfo{}, false
	}
	return types.ArtifactInfo{
		Name:        entry.Name(),
		Path:        filepath.Join(dir, entry.Name()),
		ContentType: types.ContentTypeForExtension(filepath.Ext(entry.Name())),
		Size:        fi.Size(),
		CreatedAt:   createdAt(entry.Name(), fi.ModTime()),
	}, true
}

// createdAt returns the capture time encoded in an artifact name
// (audio-{unix millis}[_n].{ext}), falling back to the file time.
func createdAt(name string, modTime time.Time) int64 {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndexByte(stem, '_'); i >= 0 {
		stem = stem[:i]
	}
	if millis, ok := strings.CutPrefix(stem, "audio-"); ok {
		if v, err := strconv.ParseInt(millis, 10, 64); err == nil {
			return v
		}
	}
	return modTime.UnixMilli()
}
