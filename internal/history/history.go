// Package history keeps a linear undo/redo stack of whole-document snapshots.
//
// Callers save the text they want to be able to return to before they mutate
// the document. A save after an undo truncates the redo portion; there is no
// branching.
package history

import "sync"

// DefaultCapacity bounds the number of snapshots kept per document.
const DefaultCapacity = 100

// Manager is a linear snapshot stack with a cursor.
type Manager struct {
	mu       sync.Mutex
	entries  []string
	cursor   int
	capacity int
}

// New creates a manager keeping at most capacity snapshots. A capacity of
// zero or less means unbounded.
func New(capacity int) *Manager {
	return &Manager{cursor: -1, capacity: capacity}
}

// Save pushes text onto the stack truncated at the cursor and moves the
// cursor to the new top. The oldest snapshot is dropped once capacity is
// exceeded.
func (m *Manager) Save(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries[:m.cursor+1], text)
	if m.capacity > 0 && len(m.entries) > m.capacity {
		drop := len(m.entries) - m.capacity
		m.entries = append([]string(nil), m.entries[drop:]...)
	}
	m.cursor = len(m.entries) - 1
}

// Checkpoint is Save, except that text already under the cursor is not
// pushed twice; only the redo portion is dropped.
func (m *Manager) Checkpoint(text string) {
	m.mu.Lock()
	if m.cursor >= 0 && m.entries[m.cursor] == text {
		m.entries = m.entries[:m.cursor+1]
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.Save(text)
}

// Undo steps the cursor back and returns the snapshot there.
func (m *Manager) Undo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor <= 0 {
		return "", false
	}
	m.cursor--

	return m.entries[m.cursor], true
}

// Redo steps the cursor forward and returns the snapshot there.
func (m *Manager) Redo() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor >= len(m.entries)-1 {
		return "", false
	}
	m.cursor++

	return m.entries[m.cursor], true
}

// CanUndo reports whether Undo would move the cursor.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cursor < len(m.entries)-1
}

// AtTop reports whether the cursor sits on the newest snapshot.
func (m *Manager) AtTop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cursor == len(m.entries)-1
}

// Current returns the snapshot under the cursor.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor < 0 {
		return "", false
	}

	return m.entries[m.cursor], true
}

// Len returns the number of snapshots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Cursor returns the cursor index, -1 when empty.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cursor
}

// Entries returns a copy of all snapshots.
func (m *Manager) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.entries...)
}

// Reset clears the stack.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	m.cursor = -1
}
