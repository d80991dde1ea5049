// Package idempotency records which external deliveries have already been
// handled, so at-least-once senders such as payment webhooks are processed once.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a handled key is remembered. Stripe retries for
	// up to three days.
	DefaultTTL = 72 * time.Hour

	// ProcessingTTL bounds a claim that was never marked done, e.g. when the
	// process died while handling the delivery.
	ProcessingTTL = 2 * time.Minute
)

// Store marks keys as seen.
type Store interface {
	// Seen claims key for ProcessingTTL and reports whether it was already
	// claimed or done.
	Seen(ctx context.Context, key string) (bool, error)

	// Done keeps a claimed key for the full TTL.
	Done(ctx context.Context, key string) error

	// Forget removes key so a later delivery is processed again.
	Forget(ctx context.Context, key string) error
}

func processingTTL(ttl time.Duration) time.Duration {
	return min(ttl, ProcessingTTL)
}

// Key builds the key for one delivery from a source.
func Key(source, id string) string {
	return fmt.Sprintf("idem:%s:%s", source, id)
}

// RedisStore keeps keys in Redis with SET NX and an expiry.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisStoreFromURL connects using a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "processing", processingTTL(s.ttl)).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

func (s *RedisStore) Done(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "done", s.ttl).Err()
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// MemoryStore keeps keys in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]time.Time // key -> expiry
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:  ttl,
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.keys[key]; ok && now.Before(expiry) {
		return true, nil
	}

	s.keys[key] = now.Add(processingTTL(s.ttl))
	s.sweep(now)
	return false, nil
}

func (s *MemoryStore) Done(ctx context.Context, key string) error {
	s.mu.Lock()
	s.keys[key] = s.now().Add(s.ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// sweep drops expired keys. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, expiry := range s.keys {
		if !now.Before(expiry) {
			delete(s.keys, k)
		}
	}
}
