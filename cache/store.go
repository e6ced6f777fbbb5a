package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"pokaimon_back/apperr"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 300 * time.Millisecond

// Store is a JSON cache-aside layer over Redis. A Store without a client is
// disabled: every read misses and every write is a no-op. Backend errors are
// logged and treated as misses, never returned to callers.
type Store struct {
	client    *redis.Client
	logger    *slog.Logger
	opTimeout time.Duration
}

// NewStore wraps client. A nil client yields a disabled store.
func NewStore(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger, opTimeout: defaultOpTimeout}
}

// Enabled reports whether a backend is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= s.opTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get decodes the value under key into dest and reports whether it was a hit.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}
	if err := s.get(ctx, key, dest); err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return false
	}
	return true
}

func (s *Store) get(ctx context.Context, key string, dest any) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return apperr.CacheFailure("read "+key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return apperr.CacheFailure("decode "+key, err)
	}
	return nil
}

// Set stores value under key with the given expiry and reports success.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !s.Enabled() {
		return false
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return false
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "key", key, "error", apperr.CacheFailure("write "+key, err))
		return false
	}
	return true
}

// Delete removes key and reports whether the backend acknowledged the command.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if !s.Enabled() {
		return false
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache delete failed", "key", key, "error", apperr.CacheFailure("delete "+key, err))
		return false
	}
	s.logger.DebugContext(ctx, "cache deleted", "key", key)
	return true
}

// GetOrSet returns the cached value under key, or calls load on a miss and caches
// its result for ttl. Load errors are returned and nothing is cached. Concurrent
// misses each call load; the last writer wins.
func GetOrSet[T any](ctx context.Context, s *Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.Get(ctx, key, &cached) {
		s.logger.DebugContext(ctx, "cache hit", "key", key)
		return cached, nil
	}
	if s.Enabled() {
		s.logger.DebugContext(ctx, "cache miss", "key", key)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	s.Set(ctx, key, value, ttl)
	return value, nil
}
