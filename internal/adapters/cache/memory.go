package cache

import (
	"context"
	"sync"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache реализация CachePort в памяти процесса на go-cache.
// Подходит для одного экземпляра сервиса и для тестов
type MemoryCache struct {
	store *gocache.Cache
	mu    sync.Mutex
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.store.Set(key, append([]byte(nil), value...), expiration)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Lock атомарен за счет go-cache Add, который падает на существующем ключе
func (m *MemoryCache) Lock(_ context.Context, key string, expiration time.Duration) (bool, error) {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Add(lockKey(key), struct{}{}, expiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) Unlock(_ context.Context, key string) error {
	m.store.Delete(lockKey(key))
	return nil
}

func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}

func lockKey(key string) string {
	return "lock:" + key
}
