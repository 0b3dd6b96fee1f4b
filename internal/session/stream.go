package session

import (
	"sync"
	"time"
)

// message is one unit on a session's output channel: a chunk of terminal
// output, or the end-of-stream sentinel.
type message struct {
	data []byte
	end  bool
}

// stream is the consumer side of the output channel shared by the reader and
// waiter workers. Poll drains without blocking; the only internal wait is the
// grace window after the first End sentinel, which lets output racing the
// exit notification arrive before the stream is declared empty.
type stream struct {
	ch    chan message
	grace time.Duration
	quit  chan struct{}

	quitOnce sync.Once

	mu        sync.Mutex
	endSeen   bool
	finalized bool
}

func newStream(depth int, grace time.Duration) *stream {
	return &stream{
		ch:    make(chan message, depth),
		grace: grace,
		quit:  make(chan struct{}),
	}
}

// push delivers a message from a worker. A push against a full channel waits
// for the consumer, but never outlives the stream: close releases every
// blocked pusher so the workers can wind down even when nobody polls again.
func (s *stream) push(m message) {
	select {
	case s.ch <- m:
	case <-s.quit:
	}
}

// close releases all pushers, current and future. Messages already queued stay
// readable through poll. Idempotent.
func (s *stream) close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// poll drains every message currently queued and returns the concatenated
// payload plus a finished flag. An empty payload with finished == false means
// "no data right now", not end-of-stream.
//
// The endSeen flag is sticky: once an End sentinel has been observed, later
// polls keep returning whatever data is still in flight, and the stream
// finalizes on the first poll that drains nothing.
func (s *stream) poll() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil, true
	}

	data, sawEnd := s.drain(nil)
	if sawEnd && !s.endSeen {
		s.endSeen = true
		time.Sleep(s.grace)
		data, _ = s.drain(data)
	}

	if s.endSeen && len(data) == 0 {
		s.finalized = true
		return nil, true
	}
	return data, false
}

// drain appends all currently queued data chunks to into, in arrival order,
// discarding End sentinels. Never blocks.
func (s *stream) drain(into []byte) (out []byte, sawEnd bool) {
	out = into
	for {
		select {
		case m := <-s.ch:
			if m.end {
				sawEnd = true
				continue
			}
			out = append(out, m.data...)
		default:
			return out, sawEnd
		}
	}
}
