package backup

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// SQLiteStore keeps backups in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	now  func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "sqlite backup store needs a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.NewIOError("ERR_BACKUP_IO", "create db directory", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewIOError("ERR_BACKUP_IO", "open sqlite", err)
	}
	// One writer; avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, apperrors.NewIOError("ERR_BACKUP_IO", "migrate sqlite", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS backups (
			vendor_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backups_saved_at ON backups(saved_at)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, vendorID, text string) error {
	if err := validVendor(vendorID); err != nil {
		return err
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO backups (vendor_id, text, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(vendor_id) DO UPDATE SET text = excluded.text, saved_at = excluded.saved_at`,
		vendorID, text, s.now().UnixNano())
	if err != nil {
		return apperrors.NewIOError("ERR_BACKUP_IO", "save backup", err)
	}

	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, vendorID string) (Entry, error) {
	var (
		text    string
		savedAt int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT text, saved_at FROM backups WHERE vendor_id = ?`, vendorID).Scan(&text, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, notFound(vendorID)
	}
	if err != nil {
		return Entry{}, apperrors.NewIOError("ERR_BACKUP_IO", "load backup", err)
	}

	return Entry{VendorID: vendorID, Text: text, SavedAt: time.Unix(0, savedAt)}, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, vendorID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM backups WHERE vendor_id = ?`, vendorID); err != nil {
		return apperrors.NewIOError("ERR_BACKUP_IO", "delete backup", err)
	}

	return nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM backups WHERE saved_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, apperrors.NewIOError("ERR_BACKUP_IO", "prune backups", err)
	}
	n, _ := res.RowsAffected()

	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
