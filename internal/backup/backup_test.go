package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

type clockStore interface {
	Store
	setNow(func() time.Time)
}

func (s *MemoryStore) setNow(f func() time.Time) { s.now = f }
func (s *FileStore) setNow(f func() time.Time)   { s.now = f }
func (s *SQLiteStore) setNow(f func() time.Time) { s.now = f }
func (s *RedisStore) setNow(f func() time.Time)  { s.now = f }

func stores(t *testing.T) map[string]clockStore {
	t.Helper()

	file, err := NewFileStore(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "backups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	out := map[string]clockStore{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sqlite,
	}

	if addr := os.Getenv("STOREFRONT_TEST_REDIS"); addr != "" {
		rs := NewRedisStore(addr, "", 0, 0)
		require.NoError(t, rs.Ping(context.Background()))
		t.Cleanup(func() { rs.Close() })
		out["redis"] = rs
	}

	return out
}

func TestStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			vendor := "vendor/../" + name

			_, err := store.Load(ctx, vendor)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Save(ctx, vendor, "component A {}"))
			require.NoError(t, store.Save(ctx, vendor, "component B {}"))

			e, err := store.Load(ctx, vendor)
			require.NoError(t, err)
			assert.Equal(t, "component B {}", e.Text, "last write wins")
			assert.Equal(t, vendor, e.VendorID)
			assert.WithinDuration(t, time.Now(), e.SavedAt, time.Minute)

			require.NoError(t, store.Delete(ctx, vendor))
			_, err = store.Load(ctx, vendor)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, store.Delete(ctx, vendor), "deleting twice is fine")

			assert.Error(t, store.Save(ctx, " ", "x"))
		})
	}
}

func TestStorePrune(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now()

			store.setNow(func() time.Time { return base.Add(-48 * time.Hour) })
			require.NoError(t, store.Save(ctx, name+"-old", "old"))
			store.setNow(func() time.Time { return base })
			require.NoError(t, store.Save(ctx, name+"-new", "new"))

			n, err := store.Prune(ctx, base.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = store.Load(ctx, name+"-old")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Load(ctx, name+"-new")
			assert.NoError(t, err)
		})
	}
}

func TestFileNameEscapesTraversal(t *testing.T) {
	assert.Equal(t, "acme-1.json", fileName("acme-1"))
	assert.Equal(t, "a.2fb.json", fileName("a/b"))
	assert.NotContains(t, fileName("../../etc/passwd"), "/")
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "b.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	s, err = Open(Config{Driver: "redis", RedisAddr: "localhost:0"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	s.Close()

	_, err = Open(Config{Driver: "file"})
	assert.Error(t, err)

	_, err = Open(Config{Driver: "etcd"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.CodeOf(err))
}

func TestPruner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, store.Save(ctx, "v1", "x"))

	p, err := NewPruner(store, "@every 1h", time.Hour, nil)
	require.NoError(t, err)

	n, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p.Start()
	p.Stop()

	_, err = NewPruner(store, "not a schedule", time.Hour, nil)
	assert.Error(t, err)
	_, err = NewPruner(store, "@daily", 0, nil)
	assert.Error(t, err)
}
