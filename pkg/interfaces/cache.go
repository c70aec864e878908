package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss возвращается Get, если ключ отсутствует в кэше
var ErrCacheMiss = errors.New("cache miss")

// CachePort определяет интерфейс для работы с системой кэширования.
// Используется для кэширования агрегатов дашборда и для блокировок
// на время push одной записи синхронизации.
type CachePort interface {
	// Get получает значение из кэша по ключу.
	// Возвращает ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия.
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// Lock пытается получить блокировку с указанным ключом.
	// Возвращает true, если блокировка получена
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// Unlock освобождает блокировку
	Unlock(ctx context.Context, key string) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
