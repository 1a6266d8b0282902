package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live sessions for status reporting.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a snapshot of every session, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Session
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
