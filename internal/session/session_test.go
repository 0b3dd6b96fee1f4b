package session

import (
	"bytes"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termhost/ptybridge/internal/command"
)

func testOptions() Options {
	return Options{Cols: 80, Rows: 24}
}

func startSession(t *testing.T, line string) *Session {
	t.Helper()
	s, err := Start(command.FromLine(line, "/tmp", nil), testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// collectUntilExit polls Read until ErrChildExited, returning every byte
// delivered on the way.
func collectUntilExit(t *testing.T, s *Session, bufSize int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, bufSize)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if err == ErrChildExited {
			return out
		}
		require.NoError(t, err)
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("session did not reach end-of-stream; got %q so far", out)
	return nil
}

func TestStart_EmptyCommand(t *testing.T) {
	_, err := Start(command.FromLine("", "/tmp", nil), testOptions())
	assert.Error(t, err)
}

func TestStart_InvalidDimensions(t *testing.T) {
	spec := command.FromLine("true", "/tmp", nil)

	_, err := Start(spec, Options{Cols: 0, Rows: 24})
	assert.Error(t, err)

	_, err = Start(spec, Options{Cols: 80, Rows: -1})
	assert.Error(t, err)
}

func TestStart_MissingExecutable(t *testing.T) {
	_, err := Start(command.FromLine("definitely-not-a-real-binary-xyz", "/tmp", nil), testOptions())
	assert.Error(t, err)
}

func TestSession_EchoOutputThenExit(t *testing.T) {
	s := startSession(t, "echo hello")

	out := collectUntilExit(t, s, 4096)
	assert.Contains(t, string(out), "hello")
	assert.Contains(t, string(out), "\n")

	// End-of-stream is permanent.
	buf := make([]byte, 16)
	_, err := s.Read(buf)
	assert.Equal(t, ErrChildExited, err)
	assert.True(t, s.Exited())
}

func TestSession_NoOutputLostWithTinyReads(t *testing.T) {
	// Round-trip law: a chunk larger than the caller's capacity must come
	// back intact across many partial reads.
	s := startSession(t, `sh -c 'printf abcdefghijklmnopqrstuvwxyz'`)

	out := collectUntilExit(t, s, 3)
	assert.Contains(t, string(out), "abcdefghijklmnopqrstuvwxyz")
}

func TestSession_PendingBufferPreservesOrder(t *testing.T) {
	s := startSession(t, `sh -c 'printf 0123456789'`)

	// Let the reader pick everything up, then read byte by byte.
	time.Sleep(200 * time.Millisecond)

	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := s.Read(buf)
		if err == ErrChildExited {
			break
		}
		require.NoError(t, err)
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		out = append(out, buf[:n]...)
	}
	assert.Contains(t, string(out), "0123456789")
}

func TestSession_WriteEchoesBack(t *testing.T) {
	s := startSession(t, "cat")

	require.NoError(t, s.Write([]byte("ping\n")))

	deadline := time.Now().Add(10 * time.Second)
	var out []byte
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := s.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		if bytes.Contains(out, []byte("ping")) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never saw written bytes echoed back; got %q", out)
}

func TestSession_WriteOrderPreserved(t *testing.T) {
	s := startSession(t, "cat")

	for _, w := range []string{"one ", "two ", "three\n"} {
		require.NoError(t, s.Write([]byte(w)))
	}

	deadline := time.Now().Add(10 * time.Second)
	var out []byte
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := s.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		if bytes.Contains(out, []byte("one two three")) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("writes arrived out of order or incomplete; got %q", out)
}

func TestSession_WriteAfterExit(t *testing.T) {
	s := startSession(t, "true")
	collectUntilExit(t, s, 256)

	assert.Equal(t, ErrChildExited, s.Write([]byte("x")))
	assert.Equal(t, ErrChildExited, s.Resize(100, 40))
}

func TestSession_KillIsIdempotent(t *testing.T) {
	s := startSession(t, "sleep 60")

	require.NoError(t, s.Kill())
	require.NoError(t, s.Kill())
	assert.True(t, s.Exited())
}

func TestSession_KillUnblocksReaders(t *testing.T) {
	s := startSession(t, "sleep 60")

	require.NoError(t, s.Kill())

	buf := make([]byte, 256)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Read(buf); err == ErrChildExited {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("read never reached end-of-stream after kill")
}

func TestSession_ExitCode(t *testing.T) {
	s := startSession(t, "sh -c 'exit 7'")
	collectUntilExit(t, s, 256)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.ExitCode() == 7 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 7, s.ExitCode())
}

func TestSession_ExitCodeSentinelWhileRunning(t *testing.T) {
	s := startSession(t, "sleep 60")
	assert.Equal(t, -1, s.ExitCode())
}

func TestSession_Pid(t *testing.T) {
	s := startSession(t, "sleep 60")
	assert.Greater(t, s.Pid(), 0)
}

func TestSession_Resize(t *testing.T) {
	s := startSession(t, "sleep 60")
	assert.NoError(t, s.Resize(120, 40))
}

func TestSession_CloseReleasesWorkersWithoutReads(t *testing.T) {
	before := runtime.NumGoroutine()

	// A tiny output channel plus a chatty child leaves the reader and waiter
	// blocked mid-push; close must still let both wind down when the session
	// is abandoned without a single read.
	s, err := Start(
		command.FromLine(`sh -c 'yes | head -c 1000000; sleep 60'`, "/tmp", nil),
		Options{Cols: 80, Rows: 24, OutputDepth: 2},
	)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, s.Close())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker goroutines leaked after close: started with %d, now %d",
		before, runtime.NumGoroutine())
}

func TestSession_CloseReleasesWhileRunning(t *testing.T) {
	s := startSession(t, "sleep 60")
	assert.NoError(t, s.Close())
	assert.True(t, s.Exited())

	// Close is safe to repeat.
	assert.NoError(t, s.Close())
}
