package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// MemoryStore keeps sessions in process memory. Expired sessions are
// removed by Run and on access; when the store is full the oldest session
// is evicted.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*core.ImportSession
	opts     Options
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*core.ImportSession),
		opts:     opts.withDefaults(),
	}
}

// Put stores a copy of s under a new session id. Get and Extend return
// copies too, so callers never share the stored session with Extend.
func (m *MemoryStore) Put(_ context.Context, s *core.ImportSession) (*core.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Now()
	m.reapLocked(now)
	for len(m.sessions) >= m.opts.MaxSessions {
		m.evictOldestLocked()
	}

	stamp(s, now, m.opts.TTL)
	stored := *s
	m.sessions[s.ID] = &stored
	return s, nil
}

// Get returns the session with id.
func (m *MemoryStore) Get(_ context.Context, id string) (*core.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

// Extend restarts the session window.
func (m *MemoryStore) Extend(_ context.Context, id string, d time.Duration) (*core.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = m.opts.Now().Add(d)
	cp := *s
	return &cp, nil
}

// Consume removes and returns the session.
func (m *MemoryStore) Consume(_ context.Context, id string) (*core.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	delete(m.sessions, id)
	return s, nil
}

// Len returns the number of cached sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reapLocked(m.opts.Now())
}

// Run reaps expired sessions every ReapInterval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				slog.Debug("reaped import sessions", "count", n)
			}
		}
	}
}

// liveLocked returns the session, dropping it when it has expired.
func (m *MemoryStore) liveLocked(id string) (*core.ImportSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if s.Expired(m.opts.Now()) {
		delete(m.sessions, id)
		return nil, core.ErrSessionExpired
	}
	return s, nil
}

func (m *MemoryStore) reapLocked(now time.Time) int {
	n := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) evictOldestLocked() {
	var oldest *core.ImportSession
	for _, s := range m.sessions {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
		slog.Warn("import session cache full, evicted oldest", "session_id", oldest.ID)
	}
}
