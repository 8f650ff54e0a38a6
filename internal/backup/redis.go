package backup

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

const redisKeyPrefix = "storefront:backup:"

// RedisStore keeps backups in Redis hashes. When a TTL is set, keys expire on
// their own and Prune only catches entries saved before the TTL was changed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a store backed by the Redis server at addr.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStore{client: rdb, ttl: ttl, now: time.Now}
}

func redisKey(vendorID string) string {
	return redisKeyPrefix + vendorID
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, vendorID, text string) error {
	if err := validVendor(vendorID); err != nil {
		return err
	}

	key := redisKey(vendorID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "text", text, "saved_at", s.now().UnixNano())
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewNetworkError("ERR_BACKUP_IO", "save backup", err)
	}

	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, vendorID string) (Entry, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(vendorID)).Result()
	if err != nil {
		return Entry{}, apperrors.NewNetworkError("ERR_BACKUP_IO", "load backup", err)
	}
	if len(fields) == 0 {
		return Entry{}, notFound(vendorID)
	}

	return entryFromHash(vendorID, fields), nil
}

func entryFromHash(vendorID string, fields map[string]string) Entry {
	savedAt, _ := strconv.ParseInt(fields["saved_at"], 10, 64)

	return Entry{VendorID: vendorID, Text: fields["text"], SavedAt: time.Unix(0, savedAt)}
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, vendorID string) error {
	if err := s.client.Del(ctx, redisKey(vendorID)).Err(); err != nil {
		return apperrors.NewNetworkError("ERR_BACKUP_IO", "delete backup", err)
	}

	return nil
}

// Prune implements Store.
func (s *RedisStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.HGet(ctx, key, "saved_at").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return n, apperrors.NewNetworkError("ERR_BACKUP_IO", "prune backups", err)
		}
		savedAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || !time.Unix(0, savedAt).Before(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return n, apperrors.NewNetworkError("ERR_BACKUP_IO", "prune backups", err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, apperrors.NewNetworkError("ERR_BACKUP_IO", "prune backups", err)
	}

	return n, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
