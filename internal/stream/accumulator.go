package stream

import (
	"strings"
	"sync"
)

// Accumulator is an append-only code buffer with a durable backup. Every
// append updates the backup and hands it to the sink before returning, so a
// crash between chunks never loses more than the chunk in flight.
type Accumulator struct {
	mu     sync.RWMutex
	buf    strings.Builder
	backup string
	sink   func(string)
}

// NewAccumulator creates an accumulator. sink may be nil.
func NewAccumulator(sink func(string)) *Accumulator {
	return &Accumulator{sink: sink}
}

// Append adds chunk to the buffer and refreshes the backup.
func (a *Accumulator) Append(chunk string) {
	if chunk == "" {
		return
	}

	a.mu.Lock()
	a.buf.WriteString(chunk)
	a.backup = a.buf.String()
	backup, sink := a.backup, a.sink
	a.mu.Unlock()

	if sink != nil {
		sink(backup)
	}
}

// String returns the raw accumulated text.
func (a *Accumulator) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.buf.String()
}

// Backup returns the backup copy.
func (a *Accumulator) Backup() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.backup
}

// Len returns the length of the raw text in bytes.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.buf.Len()
}

// Best returns the backup when present, else the raw text.
func (a *Accumulator) Best() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.backup != "" {
		return a.backup
	}

	return a.buf.String()
}
