package stream

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultTypewriterInterval is the reveal interval per character.
const DefaultTypewriterInterval = 5 * time.Millisecond

// Typewriter reveals an accumulator's text one character per interval. It
// only reads the buffer; the buffer grows at its own pace.
type Typewriter struct {
	acc      *Accumulator
	interval time.Duration

	mu    sync.Mutex
	shown int
}

// NewTypewriter creates a typewriter over acc.
func NewTypewriter(acc *Accumulator, interval time.Duration) *Typewriter {
	if interval <= 0 {
		interval = DefaultTypewriterInterval
	}

	return &Typewriter{acc: acc, interval: interval}
}

// Step reveals one more character if the buffer has one, and reports whether
// it did.
func (t *Typewriter) Step() bool {
	text := t.acc.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shown >= len(text) {
		return false
	}
	_, size := utf8.DecodeRuneInString(text[t.shown:])
	t.shown += size

	return true
}

// Visible returns the revealed prefix.
func (t *Typewriter) Visible() string {
	text := t.acc.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	return text[:min(t.shown, len(text))]
}

// Caught reports whether everything accumulated so far is visible.
func (t *Typewriter) Caught() bool {
	t.mu.Lock()
	shown := t.shown
	t.mu.Unlock()

	return shown >= t.acc.Len()
}

// Run reveals characters until ctx is done, calling emit with the visible
// text after every step.
func (t *Typewriter) Run(ctx context.Context, emit func(visible string)) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.Step() && emit != nil {
				emit(t.Visible())
			}
		}
	}
}
