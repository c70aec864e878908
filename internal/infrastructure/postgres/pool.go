package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions параметры пула соединений. Нулевые значения заменяются значениями по умолчанию
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// NewPool создает пул pgx и проверяет соединение
func NewPool(ctx context.Context, dsn string, opts PoolOptions, logger interfaces.LoggerPort) (*pgxpool.Pool, error) {
	config, err := ParseConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("Пул соединений postgres создан",
		interfaces.LogField{Key: "host", Value: config.ConnConfig.Host},
		interfaces.LogField{Key: "database", Value: config.ConnConfig.Database},
		interfaces.LogField{Key: "max_conns", Value: config.MaxConns},
	)
	return pool, nil
}

// ParseConfig разбирает DSN и применяет параметры пула.
// pool_max_conns из DSN имеет приоритет над MaxConns
func ParseConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	def := DefaultPoolOptions()
	if opts.MaxConns <= 0 {
		opts.MaxConns = def.MaxConns
	}
	if opts.MinConns <= 0 {
		opts.MinConns = def.MinConns
	}
	if opts.MaxConnLifetime <= 0 {
		opts.MaxConnLifetime = def.MaxConnLifetime
	}
	if opts.MaxConnIdleTime <= 0 {
		opts.MaxConnIdleTime = def.MaxConnIdleTime
	}

	if !strings.Contains(dsn, "pool_max_conns") {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > config.MaxConns {
		opts.MinConns = config.MaxConns
	}
	config.MinConns = opts.MinConns
	config.MaxConnLifetime = opts.MaxConnLifetime
	config.MaxConnIdleTime = opts.MaxConnIdleTime
	return config, nil
}

// RollbackLogger логирует ошибки отката для tx.NewTxManager
func RollbackLogger(logger interfaces.LoggerPort) func(rollbackErr, cause error) {
	return func(rollbackErr, cause error) {
		logger.Error("Ошибка отката транзакции",
			interfaces.ErrField(rollbackErr),
			interfaces.LogField{Key: "cause", Value: cause.Error()},
		)
	}
}
