package editor

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

// Manager holds the open sessions. Each session owns exactly one document;
// there is no shared editing across sessions.
type Manager struct {
	base   Options
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions start from base.
func NewManager(base Options) *Manager {
	logger := base.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Manager{
		base:     base,
		logger:   logger.WithComponent("sessions"),
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for vendor. An empty source starts from the
// default document.
func (m *Manager) Create(ctx context.Context, vendor Vendor, source string) (*Session, error) {
	opts := m.base
	opts.Vendor = vendor
	opts.Source = source

	id := uuid.NewString()
	s, err := New(id, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info(ctx, "Session opened", "session", id, "vendor", vendor.ID)
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound(id)
	}

	return s, nil
}

// Remove closes and forgets the session with id.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound(id)
	}
	s.Close()
	m.logger.Info(ctx, "Session closed", "session", id)

	return nil
}

// IDs returns the open session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
