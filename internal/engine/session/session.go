// Package session tracks in-memory, unpersisted login sessions, the
// same lifetime original_source's UserManager gives its session map:
// created on login, dropped on logout or expiry, never written to
// disk.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/omnifs/omnifs/internal/container"
)

// Session is the in-memory record returned by login and consulted by
// every subsequent operation.
type Session struct {
	ID              string
	Username        string
	Role            container.Role
	LoginTime       uint64
	LastActivity    uint64
	ExpirationTime  uint64
	OperationsCount uint64
}

// Manager owns the live session set. Every method takes the Manager's
// own mutex, so a single Manager may be shared across goroutines.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      uint64
}

// NewManager builds an empty session table. ttlSeconds is the
// lifetime granted to every session created by Create.
func NewManager(ttlSeconds uint64) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttlSeconds,
	}
}

// Create mints a fresh session for an already-authenticated user.
func (m *Manager) Create(username string, role container.Role, now uint64) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("session.Manager.Create: %w", err)
	}
	s := &Session{
		ID:             id,
		Username:       username,
		Role:           role,
		LoginTime:      now,
		LastActivity:   now,
		ExpirationTime: now + m.ttl,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Logout drops a session unconditionally.
func (m *Manager) Logout(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Validate returns a copy of the live session for id, removing and
// failing it if it has expired. Every successful validation touches
// LastActivity and increments OperationsCount, since validate is
// called on the hot path of every authenticated operation.
func (m *Manager) Validate(id string, now uint64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if now > s.ExpirationTime {
		delete(m.sessions, id)
		return Session{}, false
	}
	s.LastActivity = now
	s.OperationsCount++
	return *s, true
}

// Sweep removes every session expired as of now, returning how many
// were dropped. Nothing in the engine or pipeline calls it on a
// schedule; without a Sweep, an expired session stays in the table
// until its next Validate removes it.
func (m *Manager) Sweep(now uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if now > s.ExpirationTime {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Count returns the number of live sessions, for Stats().
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func newSessionID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
