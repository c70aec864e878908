package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgutils "github.com/athebyme/gomarket-sync/pkg/utils"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, product_id, group_key, account_id, external_id, status, last_snapshot,
	last_synced_at, drift_score, health_score, failure_count, last_error, created_at, updated_at`

// GetRecord получает запись синхронизации по ключу
func (s *PostgresStorage) GetRecord(ctx context.Context, key models.SyncKey) (*models.SyncRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM sync_records
		WHERE product_id = $1 AND group_key = $2 AND account_id = $3`

	rec, err := scanRecord(s.getExecutor(ctx).QueryRow(ctx, query, key.ProductID, key.GroupKey, key.AccountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("sync record", key.String())
		}
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return rec, nil
}

// UpsertRecord вставляет или обновляет запись по уникальному ключу (product_id, group_key, account_id)
func (s *PostgresStorage) UpsertRecord(ctx context.Context, rec *models.SyncRecord) error {
	var snapshot []byte
	if rec.LastSnapshot != nil {
		raw, err := json.Marshal(rec.LastSnapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		snapshot = raw
	}

	query := `
		INSERT INTO sync_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (product_id, group_key, account_id)
		DO UPDATE SET
			external_id = EXCLUDED.external_id,
			status = EXCLUDED.status,
			last_snapshot = EXCLUDED.last_snapshot,
			last_synced_at = EXCLUDED.last_synced_at,
			drift_score = EXCLUDED.drift_score,
			health_score = EXCLUDED.health_score,
			failure_count = EXCLUDED.failure_count,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := s.getExecutor(ctx).QueryRow(ctx, query,
		rec.ID, rec.ProductID, rec.GroupKey, rec.AccountID, rec.ExternalID, rec.Status.String(), snapshot,
		rec.LastSyncedAt, rec.DriftScore, rec.HealthScore, rec.FailureCount, rec.LastError,
		rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

// AppendEvent добавляет событие в историю переходов
func (s *PostgresStorage) AppendEvent(ctx context.Context, ev *models.SyncEvent) error {
	query := `
		INSERT INTO sync_events (id, record_id, product_id, group_key, account_id, operation,
			from_status, to_status, method, actor, drift_score, message, occurred_at)
		SELECT $1, r.id, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		FROM sync_records r
		WHERE r.product_id = $2 AND r.group_key = $3 AND r.account_id = $4`

	tag, err := s.getExecutor(ctx).Exec(ctx, query,
		ev.ID, ev.ProductID, ev.GroupKey, ev.AccountID, ev.Operation,
		ev.FromStatus.String(), ev.ToStatus.String(), ev.Method.String(), ev.Actor,
		ev.DriftScore, ev.Message, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewNotFoundError("sync record", models.SyncKey{
			ProductID: ev.ProductID, GroupKey: ev.GroupKey, AccountID: ev.AccountID,
		}.String())
	}
	return nil
}

// FindByExternalID ищет запись по внешнему ID листинга
func (s *PostgresStorage) FindByExternalID(ctx context.Context, externalID string) (*models.SyncRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM sync_records
		WHERE external_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	rec, err := scanRecord(s.getExecutor(ctx).QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("sync record with external id", externalID)
		}
		return nil, fmt.Errorf("failed to find sync record: %w", err)
	}
	return rec, nil
}

// ListRecords возвращает записи по фильтру и общее количество совпадений
func (s *PostgresStorage) ListRecords(ctx context.Context, filter models.RecordFilter) ([]*models.SyncRecord, int, error) {
	where, args := buildRecordWhere(filter)
	exec := s.getExecutor(ctx)

	var total int
	if err := exec.QueryRow(ctx, "SELECT COUNT(*) FROM sync_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync records: %w", err)
	}
	if total == 0 {
		return []*models.SyncRecord{}, 0, nil
	}

	order := pkgutils.NewPagination(1, filter.Limit, filter.SortBy, filter.SortDesc).GetSortOrder()
	query := "SELECT " + recordColumns + " FROM sync_records" + where + " ORDER BY " + order + ", id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.SyncRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error while iterating sync record rows: %w", err)
	}

	return records, total, nil
}

// ListEvents возвращает историю записи от новых к старым
func (s *PostgresStorage) ListEvents(ctx context.Context, key models.SyncKey, limit int) ([]*models.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, record_id, product_id, group_key, account_id, operation,
			from_status, to_status, method, actor, drift_score, message, occurred_at
		FROM sync_events
		WHERE product_id = $1 AND group_key = $2 AND account_id = $3
		ORDER BY occurred_at DESC
		LIMIT $4`

	rows, err := s.getExecutor(ctx).Query(ctx, query, key.ProductID, key.GroupKey, key.AccountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.SyncEvent, 0)
	for rows.Next() {
		var ev models.SyncEvent
		var from, to, method string
		if err := rows.Scan(&ev.ID, &ev.RecordID, &ev.ProductID, &ev.GroupKey, &ev.AccountID, &ev.Operation,
			&from, &to, &method, &ev.Actor, &ev.DriftScore, &ev.Message, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync event row: %w", err)
		}
		if ev.FromStatus, err = models.ParseSyncStatus(from); err != nil {
			return nil, err
		}
		if ev.ToStatus, err = models.ParseSyncStatus(to); err != nil {
			return nil, err
		}
		if ev.Method, err = models.ParseMethod(method); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error while iterating sync event rows: %w", err)
	}
	return events, nil
}

func buildRecordWhere(f models.RecordFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.GroupKey != "" {
		add("group_key = $%d", f.GroupKey)
	}
	if f.ExternalID != "" {
		add("external_id = $%d", f.ExternalID)
	}
	if f.OnlyLinked {
		conds = append(conds, "external_id IS NOT NULL")
	}
	if len(f.Statuses) > 0 {
		names := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			names = append(names, st.String())
		}
		add("status = ANY($%d)", names)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	var status string
	var snapshot []byte

	err := row.Scan(&rec.ID, &rec.ProductID, &rec.GroupKey, &rec.AccountID, &rec.ExternalID, &status, &snapshot,
		&rec.LastSyncedAt, &rec.DriftScore, &rec.HealthScore, &rec.FailureCount, &rec.LastError,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if rec.Status, err = models.ParseSyncStatus(status); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		var s models.Snapshot
		if err := json.Unmarshal(snapshot, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		rec.LastSnapshot = &s
	}
	return &rec, nil
}
