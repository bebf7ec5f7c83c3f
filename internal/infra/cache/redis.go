package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"autoria-leads/internal/domain"
)

// RedisTokenCache реализует domain.TokenCache через Redis.
// Переживает перезапуски процесса, чтобы не дёргать OAuth лишний раз.
type RedisTokenCache struct {
	client *redis.Client
}

var _ domain.TokenCache = (*RedisTokenCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

// Get возвращает значение; пустая строка без ошибки — ключа нет.
func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set задаёт значение с TTL.
func (c *RedisTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// MemoryTokenCache — in-process запасной вариант, когда Redis не настроен.
type MemoryTokenCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

var _ domain.TokenCache = (*MemoryTokenCache)(nil)

// NewMemory создаёт кэш в памяти.
func NewMemory() *MemoryTokenCache {
	return &MemoryTokenCache{items: make(map[string]memoryItem)}
}

// Get возвращает непросроченное значение.
func (c *MemoryTokenCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return "", nil
	}
	return item.value, nil
}

// Set задаёт значение с TTL.
func (c *MemoryTokenCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}
