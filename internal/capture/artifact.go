package capture

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// Artifact is a finalized recording. It is immutable once created.
type Artifact struct {
	Name        string
	ContentType string
	Size        int64
	CreatedAt   time.Time

	data []byte
}

// ArtifactName returns the file name for a recording created at t.
// Format: audio-{unix millis}.{ext}
func ArtifactName(t time.Time, ext string) string {
	return fmt.Sprintf("audio-%d.%s", t.UnixMilli(), ext)
}

// newArtifact concatenates chunks in order.
func newArtifact(chunks [][]byte, format Format, createdAt time.Time) *Artifact {
	var size int
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &Artifact{
		Name:        ArtifactName(createdAt, format.Extension),
		ContentType: format.ContentType,
		Size:        int64(len(data)),
		CreatedAt:   createdAt,
		data:        data,
	}
}

// Bytes returns a copy of the artifact contents.
func (a *Artifact) Bytes() []byte {
	return bytes.Clone(a.data)
}

// WriteTo implements io.WriterTo.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}
