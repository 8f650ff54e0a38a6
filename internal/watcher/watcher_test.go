package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestDebouncerCollapsesByPath(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.component"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.component"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.component"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.component", batch[0].Path)
		assert.Equal(t, "b.component", batch[1].Path)
		assert.Equal(t, EventTypeModified, batch[1].Type, "latest event per path wins")
	case <-time.After(time.Second):
		t.Fatal("no batch delivered")
	}

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected second batch: %v", batch)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(ChangeEvent{Path: "x"})
	d.Stop()

	select {
	case <-d.Output():
		t.Fatal("stopped debouncer delivered a batch")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestFilters(t *testing.T) {
	assert.True(t, ComponentFilter("shop/home.component"))
	assert.False(t, ComponentFilter("shop/home.go"))

	assert.True(t, NoEditorTempFilter("home.component"))
	assert.False(t, NoEditorTempFilter("home.component~"))
	assert.False(t, NoEditorTempFilter(".home.component.swp"))
	assert.False(t, NoEditorTempFilter("dir/.#home.component"))

	assert.True(t, NoGitFilter("src/home.component"))
	assert.False(t, NoGitFilter(".git/HEAD"))
	assert.False(t, NoGitFilter("repo/.git/index"))
}

func TestValidatePath(t *testing.T) {
	got, err := validatePath("./a/../b")
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	_, err = validatePath("../outside")
	assert.Error(t, err)
	_, err = validatePath("  ")
	assert.Error(t, err)

	_, err = validatePath("/abs/path")
	assert.NoError(t, err)
}

func TestWatchFileReportsWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "home.component")
	other := filepath.Join(dir, "other.component")
	require.NoError(t, os.WriteFile(file, []byte("component A {}"), 0o644))

	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	var mu sync.Mutex
	var batches [][]ChangeEvent
	fw.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)
		return nil
	})
	require.NoError(t, fw.WatchFile(file))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("component A { render {} }"), 0o644))
	}
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range batches {
		for _, ev := range batch {
			assert.Equal(t, file, ev.Path)
		}
	}
}

func TestAddRecursiveSkipsGit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(dir))
	watched := fw.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(dir, "a", "b"))
	assert.NotContains(t, watched, filepath.Join(dir, ".git"))
}
