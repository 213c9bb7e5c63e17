package services

import (
	"context"
	"sync"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer than the TTL are evicted by a
// background janitor, which Close stops.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates an empty MemoryStore and starts its janitor. A non-positive ttl keeps
// sessions until they are deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]models.Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor(janitorInterval(ttl))
	}
	return m
}

func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	return interval
}

// Session returns the stored session, or a fresh one when id is unknown or expired.
func (m *MemoryStore) Session(_ context.Context, id string) (models.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || m.expired(s) {
		return models.NewSession(id), nil
	}
	return cloneSession(s), nil
}

// SaveSession stores a copy of the session under its id.
func (m *MemoryStore) SaveSession(_ context.Context, session models.Session) error {
	session.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = cloneSession(session)
	return nil
}

// DeleteSession removes the session. Unknown ids are ignored.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len reports the number of sessions currently held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Purge evicts every expired session.
func (m *MemoryStore) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
		}
	}
}

// Close stops the janitor.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) expired(s models.Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Purge()
		}
	}
}

// cloneSession copies the transcript so callers cannot mutate stored state through a shared slice.
func cloneSession(s models.Session) models.Session {
	msgs := make([]models.Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	return s
}
