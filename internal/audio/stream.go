package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

// fragmentSize is the read size for encoded output.
const fragmentSize = 16 * 1024

// errAlreadyStarted is returned when Start is called twice on a stream.
var errAlreadyStarted = errors.New("recorder already started")

// stream is an acquired capture process. A single reader goroutine owns
// stdout and hands fragments to the delivery goroutine started by Start.
type stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *util.BoundedBuffer

	fragments chan []byte   // closed by the reader at EOF
	quit      chan struct{} // closed on release to unblock the reader
	done      chan struct{} // closed when delivery has finished
	first     []byte

	started     atomic.Bool
	releaseOnce sync.Once
	waitOnce    sync.Once
	waitErr     error
}

func newStream(cmd *exec.Cmd, stdout io.ReadCloser, stderr *util.BoundedBuffer) *stream {
	s := &stream{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		fragments: make(chan []byte, 8),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.read()
	return s
}

// read copies stdout into fragments until EOF or release.
func (s *stream) read() {
	defer close(s.fragments)
	for {
		buf := make([]byte, fragmentSize)
		n, err := s.stdout.Read(buf)
		if n > 0 {
			select {
			case s.fragments <- buf[:n]:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// awaitFirstFragment blocks until the process produces output, exits, or ctx ends.
func (s *stream) awaitFirstFragment(ctx context.Context) error {
	select {
	case f, ok := <-s.fragments:
		if !ok {
			waitErr := s.wait()
			return classifyExit(s.stderr.String(), waitErr)
		}
		s.first = f
		return nil
	case <-ctx.Done():
		s.kill()
		close(s.quit)
		s.wait()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("capture device produced no audio within timeout")
		}
		return ctx.Err()
	}
}

// Start begins delivering fragments to fn.
func (s *stream) Start(fn capture.FragmentHandler) error {
	if !s.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	go func() {
		defer close(s.done)
		if s.first != nil {
			fn(s.first)
			s.first = nil
		}
		for f := range s.fragments {
			fn(f)
		}
	}()
	return nil
}

// Stop asks the process to finalize its output and waits for EOF on stdout.
func (s *stream) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.cmd.Process != nil {
		if err := util.GracefulSignal(s.cmd.Process); err != nil {
			slog.Debug("graceful stop unavailable, killing capture process", "error", err)
			s.kill()
		}
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.kill()
		<-s.done
		return ctx.Err()
	case <-time.After(types.ShutdownTimeout):
		s.kill()
		<-s.done
		return fmt.Errorf("capture process did not flush within %v: %s", types.ShutdownTimeout, s.stderr.LastLine())
	}
}

// Release terminates the process if it is still running and reaps it.
func (s *stream) Release() error {
	var err error
	s.releaseOnce.Do(func() {
		s.kill()
		select {
		case <-s.quit:
		default:
			close(s.quit)
		}
		if waitErr := s.wait(); waitErr != nil {
			var exitErr *exec.ExitError
			if !errors.As(waitErr, &exitErr) {
				err = waitErr
			}
		}
	})
	return err
}

// kill force-terminates the process if it is still running.
func (s *stream) kill() {
	if s.cmd.Process == nil {
		return
	}
	if err := util.ForceKill(s.cmd.Process); err != nil {
		slog.Warn("failed to kill capture process", "pid", s.cmd.Process.Pid, "error", err)
	}
}

// wait reaps the process once.
func (s *stream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}
