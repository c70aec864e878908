package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/go-redis/redis/v8"
)

// unlockScript удаляет ключ блокировки, только если он принадлежит этому процессу
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisCache реализация CachePort на Redis. Блокировки push разделяются
// между всеми экземплярами api и worker
type RedisCache struct {
	client *redis.Client
	prefix string
	owner  string
}

// RedisOptions параметры подключения
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	// Prefix добавляется ко всем ключам
	Prefix string
	// Owner значение, записываемое в ключ блокировки (обычно hostname+pid)
	Owner string
}

func NewRedisCache(ctx context.Context, opts RedisOptions) (interfaces.CachePort, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, opts.Prefix, opts.Owner), nil
}

func newRedisCache(client *redis.Client, prefix, owner string) *RedisCache {
	if owner == "" {
		owner = "gomarket-sync"
	}
	return &RedisCache{client: client, prefix: prefix, owner: owner}
}

func (r *RedisCache) buildKey(key string) string {
	if r.prefix != "" {
		return r.prefix + ":" + key
	}
	return key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, r.buildKey(key), value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

// Lock использует SET NX с TTL, чтобы упавший процесс не держал блокировку вечно
func (r *RedisCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.buildKey(key), r.owner, expiration).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisCache) Unlock(ctx context.Context, key string) error {
	if err := unlockScript.Run(ctx, r.client, []string{r.buildKey(key)}, r.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
