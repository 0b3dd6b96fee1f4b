package ptybridge

import "time"

// SessionInfo is the public representation of one live session.
type SessionInfo struct {
	Handle    int       `json:"handle"`
	Pid       int       `json:"pid"`
	Command   string    `json:"command"`
	Dir       string    `json:"dir"`
	StartedAt time.Time `json:"started_at"`
	Active    bool      `json:"active"`
	ExitCode  int       `json:"exit_code"`
}

// Info returns metadata for one handle.
func (b *Bridge) Info(handle int) (SessionInfo, bool) {
	if handle <= 0 {
		return SessionInfo{}, false
	}
	s, ok := b.reg.Get(handle)
	if !ok {
		return SessionInfo{}, false
	}
	spec := s.Spec()
	return SessionInfo{
		Handle:    handle,
		Pid:       s.Pid(),
		Command:   spec.Line(),
		Dir:       spec.Dir,
		StartedAt: s.StartedAt(),
		Active:    !s.Exited(),
		ExitCode:  s.ExitCode(),
	}, true
}

// Sessions returns metadata for every live handle, in handle order.
func (b *Bridge) Sessions() []SessionInfo {
	handles := b.reg.Handles()
	out := make([]SessionInfo, 0, len(handles))
	for _, h := range handles {
		if info, ok := b.Info(h); ok {
			out = append(out, info)
		}
	}
	return out
}
