package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/jackc/pgx/v5"
)

// AppendWebhook добавляет запись в журнал вебхуков. Повторная доставка
// создает новую запись: журнал хранит каждую попытку
func (s *PostgresStorage) AppendWebhook(ctx context.Context, entry *models.WebhookLogEntry) error {
	query := `
		INSERT INTO webhook_log (id, topic, external_id, raw_payload, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.getExecutor(ctx).Exec(ctx, query, entry.ID, entry.Topic, entry.ExternalID, entry.RawPayload, entry.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to append webhook log entry: %w", err)
	}
	return nil
}

// GetWebhook получает запись журнала по ID
func (s *PostgresStorage) GetWebhook(ctx context.Context, id string) (*models.WebhookLogEntry, error) {
	query := `SELECT id, topic, external_id, raw_payload, received_at FROM webhook_log WHERE id = $1`

	var e models.WebhookLogEntry
	err := s.getExecutor(ctx).QueryRow(ctx, query, id).Scan(&e.ID, &e.Topic, &e.ExternalID, &e.RawPayload, &e.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("webhook log entry", id)
		}
		return nil, fmt.Errorf("failed to get webhook log entry: %w", err)
	}
	return &e, nil
}

// ListWebhooks возвращает записи журнала от новых к старым
func (s *PostgresStorage) ListWebhooks(ctx context.Context, filter models.WebhookFilter) ([]*models.WebhookLogEntry, error) {
	var conds []string
	var args []interface{}
	if filter.Topic != "" {
		args = append(args, filter.Topic)
		conds = append(conds, fmt.Sprintf("topic = $%d", len(args)))
	}
	if filter.ExternalID != "" {
		args = append(args, filter.ExternalID)
		conds = append(conds, fmt.Sprintf("external_id = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, topic, external_id, raw_payload, received_at FROM webhook_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY received_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.WebhookLogEntry, 0)
	for rows.Next() {
		var e models.WebhookLogEntry
		if err := rows.Scan(&e.ID, &e.Topic, &e.ExternalID, &e.RawPayload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error while iterating webhook log rows: %w", err)
	}
	return entries, nil
}
