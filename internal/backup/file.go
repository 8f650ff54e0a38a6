package backup

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// FileStore keeps one JSON document per vendor in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "file backup store needs a path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewIOError("ERR_BACKUP_IO", "create backup directory", err)
	}

	return &FileStore{dir: dir, now: time.Now}, nil
}

// fileName maps a vendor id to a safe file name. Bytes outside
// [A-Za-z0-9_-] are hex-escaped so ids cannot traverse directories.
func fileName(vendorID string) string {
	var b strings.Builder
	for i := 0; i < len(vendorID); i++ {
		c := vendorID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('.')
			b.WriteString(hex.EncodeToString([]byte{c}))
		}
	}

	return b.String() + ".json"
}

func (s *FileStore) path(vendorID string) string {
	return filepath.Join(s.dir, fileName(vendorID))
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(_ context.Context, vendorID, text string) error {
	if err := validVendor(vendorID); err != nil {
		return err
	}

	data, err := json.Marshal(Entry{VendorID: vendorID, Text: text, SavedAt: s.now().UTC()})
	if err != nil {
		return apperrors.NewInternalError(apperrors.ErrCodeInternalError, "encode backup", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".backup-*")
	if err != nil {
		return apperrors.NewIOError("ERR_BACKUP_IO", "write backup", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewIOError("ERR_BACKUP_IO", "write backup", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("ERR_BACKUP_IO", "write backup", err)
	}
	if err := os.Rename(tmp.Name(), s.path(vendorID)); err != nil {
		return apperrors.NewIOError("ERR_BACKUP_IO", "write backup", err)
	}

	return nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, vendorID string) (Entry, error) {
	if err := validVendor(vendorID); err != nil {
		return Entry{}, err
	}

	return readEntry(s.path(vendorID), vendorID)
}

func readEntry(path, vendorID string) (Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, notFound(vendorID)
	}
	if err != nil {
		return Entry{}, apperrors.NewIOError("ERR_BACKUP_IO", "read backup", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, apperrors.NewIOError("ERR_BACKUP_IO", fmt.Sprintf("corrupt backup %s", filepath.Base(path)), err)
	}

	return e, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(vendorID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.NewIOError("ERR_BACKUP_IO", "delete backup", err)
	}

	return nil
}

// Prune implements Store. Unreadable files are left alone.
func (s *FileStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, apperrors.NewIOError("ERR_BACKUP_IO", "list backups", err)
	}

	n := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		e, err := readEntry(name, "")
		if err != nil || !e.SavedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(name); err == nil {
			n++
		}
	}

	return n, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
