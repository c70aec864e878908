package tx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKey - ключ для хранения транзакции в контексте. Используем приватный тип, чтобы избежать коллизий.
type txKeyType struct{}

var txKey = txKeyType{}

// TxManager управляет жизненным циклом транзакций БД.
type TxManager interface {
	// Do выполняет fn внутри транзакции.
	// Ошибка fn откатывает транзакцию, nil фиксирует её.
	// Контекст, передаваемый в fn, содержит саму транзакцию.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// RollbackLogger получает ошибки отката, которые иначе были бы потеряны
type RollbackLogger func(rollbackErr, cause error)

// pgxTxManager - реализация TxManager для pgx.
type pgxTxManager struct {
	pool       *pgxpool.Pool
	onRollback RollbackLogger
}

// NewTxManager создает новый менеджер транзакций.
func NewTxManager(pool *pgxpool.Pool, onRollback RollbackLogger) TxManager {
	return &pgxTxManager{pool: pool, onRollback: onRollback}
}

// Do реализует метод интерфейса TxManager.
func (m *pgxTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// Вложенный вызов переиспользует уже открытую транзакцию
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	// Откат после Commit возвращает ErrTxClosed, его игнорируем
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = fn(txCtx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && m.onRollback != nil {
			m.onRollback(rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}

	return nil
}

// nopTxManager выполняет fn без транзакции. Используется in-memory хранилищем
type nopTxManager struct{}

// NewNopTxManager создает менеджер, который просто вызывает fn
func NewNopTxManager() TxManager {
	return nopTxManager{}
}

func (nopTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// GetTxFromContext извлекает транзакцию из контекста.
func GetTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

func GetKey() interface{} {
	return txKey
}
