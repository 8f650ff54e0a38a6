// Package backup keeps the latest component source per vendor so an editor
// session can offer to restore it. It is a last-write-wins cache with best
// effort durability, not a transactional store.
package backup

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Entry is one stored backup.
type Entry struct {
	VendorID string    `json:"vendorId"`
	Text     string    `json:"text"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store persists backups keyed by vendor.
type Store interface {
	Save(ctx context.Context, vendorID, text string) error
	Load(ctx context.Context, vendorID string) (Entry, error)
	Delete(ctx context.Context, vendorID string) error
	// Prune removes entries saved before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ErrNotFound is returned by Load when the vendor has no backup.
var ErrNotFound = apperrors.NewValidationError(apperrors.ErrCodeNoBackup, "no backup for vendor")

// Drivers understood by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a store.
type Config struct {
	Driver        string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Retention is used as the key TTL by the redis store.
	Retention time.Duration
}

// Open creates the store selected by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.Path)
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case DriverRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Retention), nil
	default:
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "unknown backup driver: "+cfg.Driver)
	}
}

func validVendor(vendorID string) error {
	if strings.TrimSpace(vendorID) == "" {
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "vendor id is required")
	}

	return nil
}

func notFound(vendorID string) error {
	return apperrors.NewValidationError(ErrNotFound.Code, ErrNotFound.Message).
		WithContext("vendor", vendorID)
}
