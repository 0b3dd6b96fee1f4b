// Package registry maps small positive integer handles to live sessions.
// It is the only process-wide mutable state in the system; every access goes
// through one mutex so the locking discipline stays auditable.
package registry

import (
	"sort"
	"sync"

	"github.com/termhost/ptybridge/internal/session"
)

// Registry is a handle table for live sessions. Handles are allocated from a
// monotonically increasing counter and never reused, so a caller holding a
// stale handle after Remove can never reach a different session.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*session.Session
	next     int
}

// New returns an empty registry. The first issued handle is 1; zero and
// negative values stay reserved as error sentinels.
func New() *Registry {
	return &Registry{
		sessions: make(map[int]*session.Session),
		next:     1,
	}
}

// Put stores a session and returns its freshly allocated handle.
func (r *Registry) Put(s *session.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.next
	r.next++
	r.sessions[h] = s
	return h
}

// Get resolves a handle to its session.
func (r *Registry) Get(handle int) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	return s, ok
}

// Remove evicts a handle and returns the session it pointed to, if any.
// The caller is responsible for closing the session; a background worker
// still finishing its last message safely outlives the eviction.
func (r *Registry) Remove(handle int) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if ok {
		delete(r.sessions, handle)
	}
	return s, ok
}

// Handles returns the live handles in ascending order.
func (r *Registry) Handles() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]int, 0, len(r.sessions))
	for h := range r.sessions {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	return handles
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clear evicts every session and returns them for cleanup. Used at process
// shutdown to kill anything still alive.
func (r *Registry) Clear() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*session.Session, 0, len(r.sessions))
	for h, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, h)
	}
	return out
}
