package interfaces

import "context"

// StoragePort определяет жизненный цикл постоянного хранилища.
// Репозитории записей синхронизации и журнала вебхуков строятся поверх него
type StoragePort interface {
	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
