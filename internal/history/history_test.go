package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyManager(t *testing.T) {
	m := New(DefaultCapacity)

	_, ok := m.Undo()
	assert.False(t, ok)
	_, ok = m.Redo()
	assert.False(t, ok)
	_, ok = m.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, m.Cursor())
	assert.Equal(t, 0, m.Len())
}

func TestUndoRedoLinearity(t *testing.T) {
	m := New(DefaultCapacity)
	m.Save("A")
	m.Save("B")

	got, ok := m.Undo()
	require.True(t, ok)
	assert.Equal(t, "A", got)

	got, ok = m.Redo()
	require.True(t, ok)
	assert.Equal(t, "B", got)

	cur, _ := m.Current()
	assert.Equal(t, "B", cur)
}

func TestSaveAfterUndoTruncatesRedo(t *testing.T) {
	m := New(DefaultCapacity)
	m.Save("A")
	m.Save("B")
	m.Undo()
	m.Save("C")

	assert.False(t, m.CanRedo())
	_, ok := m.Redo()
	assert.False(t, ok, "B must be unreachable")
	assert.Equal(t, []string{"A", "C"}, m.Entries())
}

func TestUndoStopsAtFirstSnapshot(t *testing.T) {
	m := New(DefaultCapacity)
	m.Save("A")

	assert.False(t, m.CanUndo())
	_, ok := m.Undo()
	assert.False(t, ok)
	assert.True(t, m.AtTop())
}

func TestCapacityDropsOldest(t *testing.T) {
	m := New(3)
	for i := 0; i < 5; i++ {
		m.Save(fmt.Sprintf("v%d", i))
	}

	assert.Equal(t, []string{"v2", "v3", "v4"}, m.Entries())
	assert.Equal(t, 2, m.Cursor())

	got, ok := m.Undo()
	require.True(t, ok)
	assert.Equal(t, "v3", got)
}

func TestReset(t *testing.T) {
	m := New(0)
	m.Save("A")
	m.Save("B")
	m.Reset()

	assert.Equal(t, 0, m.Len())
	assert.False(t, m.CanUndo())
}

func TestConcurrentSaves(t *testing.T) {
	m := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Save(fmt.Sprintf("v%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	assert.Equal(t, 49, m.Cursor())
}

func TestCheckpointSkipsDuplicateUnderCursor(t *testing.T) {
	m := New(0)
	m.Checkpoint("A")
	m.Checkpoint("B")
	_, ok := m.Undo()
	require.True(t, ok)

	m.Checkpoint("A")
	assert.Equal(t, []string{"A"}, m.Entries(), "redo portion dropped, A not pushed again")
	assert.False(t, m.CanRedo())

	m.Checkpoint("C")
	assert.Equal(t, []string{"A", "C"}, m.Entries())
}
