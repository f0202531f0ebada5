package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers delivered tasks so a retried task is not
// delivered twice.
type IdempotencyStore interface {
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
}

type MemoryStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.items[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.items[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.items[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expires) {
		delete(s.items, key)
		return false, nil
	}
	return true, nil
}

type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "billing:side-effect:"}
}

// MarkProcessed uses SETNX so only the first caller wins.
func (s *RedisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var (
	_ IdempotencyStore = (*MemoryStore)(nil)
	_ IdempotencyStore = (*RedisStore)(nil)
)
