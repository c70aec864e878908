package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-sync/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// catalogTable таблица каталога, которой владеет сервис товаров
const catalogTable = "product.products"

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStorage реализация хранилищ синхронизации на PostgreSQL.
// Записи, события, журнал вебхуков, аккаунты, связи и чтение каталога
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorageWithPool создает хранилище поверх готового пула
func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// Ping проверяет соединение с БД
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// getExecutor возвращает транзакцию из контекста или пул
func (s *PostgresStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return s.pool
}
