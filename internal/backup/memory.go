package backup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps backups in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, vendorID, text string) error {
	if err := validVendor(vendorID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[vendorID] = Entry{VendorID: vendorID, Text: text, SavedAt: s.now()}

	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, vendorID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[vendorID]
	if !ok {
		return Entry{}, notFound(vendorID)
	}

	return e, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, vendorID)

	return nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if e.SavedAt.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}

	return n, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
