// Package session owns one spawned child process attached to a PTY: its I/O
// workers, exit tracking, and the non-blocking read surface consumed by the
// boundary API.
//
// Three goroutines run per live session:
//   - reader: blocking reads from the PTY master, forwarded as data messages
//   - writer: drains the write queue into the PTY master, in FIFO order
//   - waiter: blocks on child exit, records the exit code, emits End
//
// The consumer never blocks: Read drains whatever is queued, with a short
// configurable grace window at end-of-stream so trailing output racing the
// exit notification is never dropped.
package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/termhost/ptybridge/internal/command"
)

var (
	// ErrChildExited reports an operation against a session whose child is
	// already done. Distinct from generic failures so callers can tell
	// "session finished" from "something broke".
	ErrChildExited = errors.New("child process has exited")

	// ErrQueueFull reports a write submission that could not be enqueued.
	// The submission is all-or-nothing; nothing was written.
	ErrQueueFull = errors.New("write queue is full")

	// ErrNoProcess reports a session whose child process handle is gone.
	ErrNoProcess = errors.New("no child process")
)

// Options tunes a session's workers and buffering.
type Options struct {
	Cols        int
	Rows        int
	ReadChunk   int           // reader buffer size per blocking read
	OutputDepth int           // output channel capacity
	WriteDepth  int           // write queue capacity
	DrainGrace  time.Duration // end-of-stream debounce window
	Logger      *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.ReadChunk <= 0 {
		o.ReadChunk = 8192
	}
	if o.OutputDepth <= 0 {
		o.OutputDepth = 1024
	}
	if o.WriteDepth <= 0 {
		o.WriteDepth = 64
	}
	if o.DrainGrace <= 0 {
		o.DrainGrace = 20 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Session is one spawned child with PTY-attached I/O.
type Session struct {
	spec      command.Spec
	pid       int
	startedAt time.Time

	out    *stream
	writeQ chan []byte

	ptmx  *os.File
	ptyMu sync.Mutex // PTY master is not safe for concurrent resize/write

	cmd    *exec.Cmd
	killMu sync.Mutex

	exited   atomic.Bool
	exitCode atomic.Int32

	readMu  sync.Mutex
	pending []byte

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once

	log *zap.Logger
}

// Start spawns the command attached to a fresh PTY and launches the three
// background workers. The returned session is live until Close.
func Start(spec command.Spec, opts Options) (*Session, error) {
	opts.fillDefaults()

	if spec.Empty() {
		return nil, fmt.Errorf("empty command")
	}
	if opts.Cols <= 0 || opts.Rows <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", opts.Cols, opts.Rows)
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &Session{
		spec:      spec,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		out:       newStream(opts.OutputDepth, opts.DrainGrace),
		writeQ:    make(chan []byte, opts.WriteDepth),
		ptmx:      ptmx,
		cmd:       cmd,
		done:      make(chan struct{}),
		log:       opts.Logger.With(zap.Int("pid", cmd.Process.Pid)),
	}
	s.exitCode.Store(-1)

	go s.waitLoop()
	go s.readLoop(opts.ReadChunk)
	go s.writeLoop()

	s.log.Debug("session started",
		zap.String("command", spec.Line()),
		zap.String("dir", spec.Dir),
		zap.Int("cols", opts.Cols),
		zap.Int("rows", opts.Rows))

	return s, nil
}

// waitLoop blocks until the child terminates, records the exit code, and
// emits the End sentinel.
func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	switch e := err.(type) {
	case nil:
		s.exitCode.Store(0)
	case *exec.ExitError:
		s.exitCode.Store(int32(e.ExitCode()))
	default:
		s.log.Debug("wait failed", zap.Error(err))
	}

	s.log.Debug("child exited", zap.Int32("exit_code", s.exitCode.Load()))
	s.doneOnce.Do(func() { close(s.done) })
	s.out.push(message{end: true})
}

// readLoop performs blocking reads from the PTY master. Each non-empty read
// becomes one data message; EOF or a read error ends the loop with an End
// sentinel. Chunks are copied before forwarding so the shared read buffer is
// never aliased downstream.
func (s *Session) readLoop(chunk int) {
	buf := make([]byte, chunk)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.out.push(message{data: data})
		}
		if err != nil {
			// EIO is the normal Linux signal that the slave side is gone.
			s.log.Debug("reader done", zap.Error(err))
			break
		}
	}
	s.out.push(message{end: true})
}

// writeLoop drains the write queue into the PTY in submission order. A write
// failure ends the loop; queued submissions after a failure are dropped, the
// child is gone or going.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.writeQ:
			s.ptyMu.Lock()
			_, err := s.ptmx.Write(data)
			s.ptyMu.Unlock()
			if err != nil {
				s.log.Debug("writer done", zap.Error(err))
				return
			}
		}
	}
}

// Write enqueues the exact byte sequence for delivery to the terminal input.
// All-or-nothing: either the full submission is queued or an error is
// returned. The bytes are copied; the caller keeps ownership of p.
func (s *Session) Write(p []byte) error {
	if s.exited.Load() {
		return ErrChildExited
	}

	data := make([]byte, len(p))
	copy(data, p)

	select {
	case s.writeQ <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Read copies available output into p without blocking. Leftover bytes from
// a previous larger chunk are returned first; any overflow from a freshly
// polled chunk is carried into the pending buffer for the next call. Returns
// 0 with no error when no output is currently available, and ErrChildExited
// once the stream has fully drained after end-of-stream.
func (s *Session) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		if len(s.pending) == 0 {
			s.pending = nil
		}
		return n, nil
	}

	data, finished := s.out.poll()
	if finished {
		s.exited.Store(true)
		return 0, ErrChildExited
	}

	n := copy(p, data)
	if n < len(data) {
		s.pending = append(s.pending, data[n:]...)
	}
	return n, nil
}

// Resize applies new terminal dimensions.
func (s *Session) Resize(cols, rows int) error {
	if s.exited.Load() {
		return ErrChildExited
	}

	s.ptyMu.Lock()
	defer s.ptyMu.Unlock()
	if err := pty.Setsize(s.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	}); err != nil {
		return fmt.Errorf("resize failed: %w", err)
	}
	return nil
}

// Kill terminates the child. Idempotent: a session that already exited
// reports success. On success the session is marked exited immediately; the
// waiter independently observes the same transition.
func (s *Session) Kill() error {
	if s.exited.Load() {
		return nil
	}

	s.killMu.Lock()
	defer s.killMu.Unlock()

	proc := s.cmd.Process
	if proc == nil {
		return ErrNoProcess
	}
	if err := proc.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			s.exited.Store(true)
			return nil
		}
		return fmt.Errorf("kill failed: %w", err)
	}

	s.exited.Store(true)
	return nil
}

// Close kills the child if still alive, releases the PTY, and releases any
// worker blocked on a full output channel, so all three workers wind down
// even when the consumer never polls again.
func (s *Session) Close() error {
	_ = s.Kill()
	s.closeOnce.Do(func() {
		s.ptmx.Close()
		s.out.close()
	})
	return nil
}

// Pid returns the child process id.
func (s *Session) Pid() int { return s.pid }

// ExitCode returns the last known exit code, or -1 until the waiter has
// reported one.
func (s *Session) ExitCode() int { return int(s.exitCode.Load()) }

// Exited reports whether the session has been marked exited.
func (s *Session) Exited() bool { return s.exited.Load() }

// StartedAt returns the spawn time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Spec returns the command this session was spawned from.
func (s *Session) Spec() command.Spec { return s.spec }
