// Package ptybridge exposes pseudoterminal sessions to an embedding host
// through a stable, handle-based call surface. Sessions are addressed by
// opaque positive integers; every operation validates its arguments, looks
// the handle up in the process-wide registry, and delegates to the session.
//
// Status codes follow the classic FFI convention: StatusSuccess (0),
// StatusError (-1) for invalid input or transient failures, and
// StatusChildExited (-2) once a session's child is done, a distinct signal
// so callers can tell "this session is simply finished" from "something
// broke". Read returns a byte count instead of StatusSuccess.
//
// No call blocks: Read drains whatever output is queued and returns 0 when
// nothing is available, so callers are expected to poll.
package ptybridge

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/termhost/ptybridge/internal/command"
	"github.com/termhost/ptybridge/internal/config"
	"github.com/termhost/ptybridge/internal/logging"
	"github.com/termhost/ptybridge/internal/monitoring"
	"github.com/termhost/ptybridge/internal/registry"
	"github.com/termhost/ptybridge/internal/session"
)

// Status codes returned across the boundary.
const (
	StatusSuccess     = 0
	StatusError       = -1
	StatusChildExited = -2
)

// ExitCodePending is returned by ExitCode until the child's real exit code
// has been recorded.
const ExitCodePending = -1

// Bridge is the boundary API instance: a handle registry plus the settings
// every session it spawns inherits.
type Bridge struct {
	cfg     *config.Config
	log     *logging.Logger
	reg     *registry.Registry
	metrics *monitoring.Metrics
}

// New creates a bridge with its own registry and metrics collector.
func New(cfg *config.Config, log *logging.Logger) *Bridge {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Bridge{
		cfg:     cfg,
		log:     log,
		reg:     registry.New(),
		metrics: monitoring.NewMetrics(),
	}
}

// Metrics returns the bridge's metrics collector.
func (b *Bridge) Metrics() *monitoring.Metrics { return b.metrics }

// Spawn builds a command from the given command line and working directory,
// launches it attached to a fresh PTY of the given size, and returns a new
// positive handle. Returns StatusError on invalid input or spawn failure;
// no handle is allocated in that case.
func (b *Bridge) Spawn(cmdline, cwd string, cols, rows int) int {
	if cols <= 0 || rows <= 0 {
		return StatusError
	}

	spec := command.FromLine(cmdline, cwd, nil)
	s, err := session.Start(spec, session.Options{
		Cols:        cols,
		Rows:        rows,
		ReadChunk:   b.cfg.Session.ReadChunk,
		OutputDepth: b.cfg.Session.OutputDepth,
		WriteDepth:  b.cfg.Session.WriteDepth,
		DrainGrace:  b.cfg.Session.DrainGrace(),
		Logger:      b.log.Logger,
	})
	if err != nil {
		b.metrics.SpawnFailures.Inc()
		b.log.Debug("spawn failed", zap.String("cmdline", cmdline), zap.Error(err))
		return StatusError
	}

	handle := b.reg.Put(s)
	b.metrics.SessionsSpawned.Inc()
	b.metrics.SessionsActive.Set(float64(b.reg.Len()))
	b.log.Debug("spawned", zap.Int("handle", handle), zap.Int("pid", s.Pid()))
	return handle
}

// Write submits the exact byte sequence to the session's terminal input.
// The bytes are copied before returning; the caller keeps ownership of data.
func (b *Bridge) Write(handle int, data []byte) int {
	if handle <= 0 || data == nil {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}

	if err := s.Write(data); err != nil {
		return statusFromError(err)
	}
	b.metrics.BytesWritten.Add(float64(len(data)))
	return StatusSuccess
}

// Read copies available session output into buf, never more than len(buf)
// bytes. Returns the count copied (0 when no output is currently pending),
// StatusChildExited once all output has been drained at end-of-stream, or
// StatusError for an invalid handle or buffer.
func (b *Bridge) Read(handle int, buf []byte) int {
	if handle <= 0 || buf == nil || len(buf) == 0 {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}

	n, err := s.Read(buf)
	if err != nil {
		return statusFromError(err)
	}
	if n > 0 {
		b.metrics.BytesRead.Add(float64(n))
	}
	return n
}

// Resize applies new terminal dimensions to the session.
func (b *Bridge) Resize(handle, cols, rows int) int {
	if handle <= 0 || cols <= 0 || rows <= 0 {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}

	if err := s.Resize(cols, rows); err != nil {
		return statusFromError(err)
	}
	return StatusSuccess
}

// Kill terminates the session's child. Idempotent: killing an already-dead
// session reports success.
func (b *Bridge) Kill(handle int) int {
	if handle <= 0 {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}

	alreadyExited := s.Exited()
	if err := s.Kill(); err != nil {
		b.log.Debug("kill failed", zap.Int("handle", handle), zap.Error(err))
		return StatusError
	}
	if !alreadyExited {
		b.metrics.SessionsKilled.Inc()
	}
	return StatusSuccess
}

// Pid returns the session's child process id, or StatusError.
func (b *Bridge) Pid(handle int) int {
	if handle <= 0 {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}
	return s.Pid()
}

// ExitCode returns the session's last known exit code, or ExitCodePending
// until the waiter has recorded one. StatusError for an unknown handle.
func (b *Bridge) ExitCode(handle int) int {
	if handle <= 0 {
		return StatusError
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return StatusError
	}
	return s.ExitCode()
}

// Close evicts the handle, kills the child if still alive, and releases all
// session resources. Closing an unknown handle is a no-op.
func (b *Bridge) Close(handle int) {
	if handle <= 0 {
		return
	}
	s, ok := b.reg.Remove(handle)
	if !ok {
		return
	}
	s.Close()
	b.metrics.SessionsActive.Set(float64(b.reg.Len()))
	b.log.Debug("closed", zap.Int("handle", handle))
}

// Shutdown closes every live session. Called at process teardown.
func (b *Bridge) Shutdown() {
	for _, s := range b.reg.Clear() {
		s.Close()
	}
	b.metrics.SessionsActive.Set(0)
}

func statusFromError(err error) int {
	if errors.Is(err, session.ErrChildExited) {
		return StatusChildExited
	}
	return StatusError
}

var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
)

// Default returns the process-wide bridge, initialized lazily on first use
// from the environment.
func Default() *Bridge {
	defaultOnce.Do(func() {
		cfg := config.LoadOrDefault()
		log := logging.NewFromEnv(cfg.Logging.Level, cfg.Logging.Development)
		defaultBridge = New(cfg, log)
	})
	return defaultBridge
}

// Spawn calls Spawn on the default bridge.
func Spawn(cmdline, cwd string, cols, rows int) int {
	return Default().Spawn(cmdline, cwd, cols, rows)
}

// Write calls Write on the default bridge.
func Write(handle int, data []byte) int { return Default().Write(handle, data) }

// Read calls Read on the default bridge.
func Read(handle int, buf []byte) int { return Default().Read(handle, buf) }

// Resize calls Resize on the default bridge.
func Resize(handle, cols, rows int) int { return Default().Resize(handle, cols, rows) }

// Kill calls Kill on the default bridge.
func Kill(handle int) int { return Default().Kill(handle) }

// Pid calls Pid on the default bridge.
func Pid(handle int) int { return Default().Pid(handle) }

// ExitCode calls ExitCode on the default bridge.
func ExitCode(handle int) int { return Default().ExitCode(handle) }

// Close calls Close on the default bridge.
func Close(handle int) { Default().Close(handle) }

// Shutdown closes every session on the default bridge.
func Shutdown() { Default().Shutdown() }
