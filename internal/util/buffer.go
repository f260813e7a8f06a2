package util

import (
	"sync"

	"github.com/oszuidwest/zwfm-capture/internal/ffmpeg"
)

// BoundedBuffer is a thread-safe io.Writer that keeps only the most recent
// maxSize bytes written to it.
type BoundedBuffer struct {
	mu      sync.Mutex
	data    []byte
	maxSize int
}

// NewBoundedBuffer creates a bounded buffer holding at most maxSize bytes.
func NewBoundedBuffer(maxSize int) *BoundedBuffer {
	return &BoundedBuffer{
		data:    make([]byte, 0, maxSize),
		maxSize: maxSize,
	}
}

// NewStderrBuffer creates a bounded buffer sized for FFmpeg stderr output.
func NewStderrBuffer() *BoundedBuffer {
	return NewBoundedBuffer(ffmpeg.MaxStderrSize)
}

// Write implements io.Writer, discarding the oldest bytes once full.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.maxSize {
		b.data = append(b.data[:0], p[n-b.maxSize:]...)
		return n, nil
	}
	if overflow := len(b.data) + n - b.maxSize; overflow > 0 {
		b.data = append(b.data[:0], b.data[overflow:]...)
	}
	b.data = append(b.data, p...)
	return n, nil
}

// String returns the buffered bytes as a string.
func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// LastLine returns the last non-blank line written, truncated for logging.
func (b *BoundedBuffer) LastLine() string {
	return ffmpeg.ExtractLastError(b.String())
}
