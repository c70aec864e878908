package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
)

const dashboardPageSize = 500

// DashboardConfig пороги для выборок дашборда
type DashboardConfig struct {
	CriticalThreshold float64
	StalenessWindow   time.Duration
	// HealthyDriftTolerance дрейф, который еще считается нулевым
	HealthyDriftTolerance float64
	SummaryTTL            time.Duration
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		CriticalThreshold:     DefaultComparatorConfig().CriticalThreshold,
		StalenessWindow:       24 * time.Hour,
		HealthyDriftTolerance: 0.5,
		SummaryTTL:            30 * time.Second,
	}
}

// DashboardService запросы только на чтение к хранилищу записей синхронизации
type DashboardService struct {
	records SyncRecordStore
	cache   interfaces.CachePort
	cfg     DashboardConfig
	logger  interfaces.LoggerPort
	now     func() time.Time
}

func NewDashboardService(records SyncRecordStore, cache interfaces.CachePort, cfg DashboardConfig, logger interfaces.LoggerPort) *DashboardService {
	return &DashboardService{
		records: records,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.WithComponent("dashboard"),
		now:     time.Now,
	}
}

// NeedsAttention истина для failed, критического дрейфа или устаревшей синхронизации
func (d *DashboardService) NeedsAttention(rec *models.SyncRecord, now time.Time) bool {
	return rec.Status == models.StatusFailed ||
		rec.DriftScore > d.cfg.CriticalThreshold ||
		d.isStale(rec, now)
}

// IsHealthy истина для синхронизированных записей без дрейфа и без устаревания
func (d *DashboardService) IsHealthy(rec *models.SyncRecord, now time.Time) bool {
	return rec.Status == models.StatusSynced &&
		rec.DriftScore <= d.cfg.HealthyDriftTolerance &&
		rec.LastSyncedAt != nil &&
		!d.isStale(rec, now)
}

// isStale: запись, ни разу не синхронизированная, устаревшей не считается
func (d *DashboardService) isStale(rec *models.SyncRecord, now time.Time) bool {
	if rec.LastSyncedAt == nil || d.cfg.StalenessWindow <= 0 {
		return false
	}
	return now.Sub(*rec.LastSyncedAt) > d.cfg.StalenessWindow
}

// ListNeedsAttention возвращает записи, требующие внимания
func (d *DashboardService) ListNeedsAttention(ctx context.Context, accountID string) ([]*models.SyncRecord, error) {
	return d.collect(ctx, accountID, d.NeedsAttention)
}

// ListHealthy возвращает здоровые записи
func (d *DashboardService) ListHealthy(ctx context.Context, accountID string) ([]*models.SyncRecord, error) {
	return d.collect(ctx, accountID, d.IsHealthy)
}

// ListRecords выборка записей для UI
func (d *DashboardService) ListRecords(ctx context.Context, filter models.RecordFilter) ([]*models.SyncRecord, int, error) {
	records, total, err := d.records.ListRecords(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync records: %w", err)
	}
	return records, total, nil
}

// History возвращает историю переходов записи
func (d *DashboardService) History(ctx context.Context, key models.SyncKey, limit int) ([]*models.SyncEvent, error) {
	events, err := d.records.ListEvents(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}
	return events, nil
}

// Summary считает распределение по статусам и оценкам. Результат кэшируется на SummaryTTL
func (d *DashboardService) Summary(ctx context.Context, accountID string) (*models.DashboardSummary, error) {
	cacheKey := "sync:summary:" + accountID
	if cached := d.cachedSummary(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	summary := &models.DashboardSummary{
		CountsByStatus: make(map[string]int),
		CountsByGrade:  make(map[string]int),
		GeneratedAt:    d.now().UTC(),
	}
	for _, s := range models.AllStatuses() {
		summary.CountsByStatus[s.String()] = 0
	}
	for _, g := range models.AllGrades() {
		summary.CountsByGrade[g.String()] = 0
	}

	err := d.scan(ctx, accountID, func(rec *models.SyncRecord) {
		summary.Total++
		summary.CountsByStatus[rec.Status.String()]++
		summary.CountsByGrade[GradeFor(rec.HealthScore).String()]++
	})
	if err != nil {
		return nil, err
	}

	if d.cache != nil && d.cfg.SummaryTTL > 0 {
		if raw, err := json.Marshal(summary); err == nil {
			if err := d.cache.Set(ctx, cacheKey, raw, d.cfg.SummaryTTL); err != nil {
				d.logger.WarnWithContext(ctx, "Ошибка кэширования сводки дашборда", interfaces.ErrField(err))
			}
		}
	}
	return summary, nil
}

func (d *DashboardService) cachedSummary(ctx context.Context, key string) *models.DashboardSummary {
	if d.cache == nil || d.cfg.SummaryTTL <= 0 {
		return nil
	}
	raw, err := d.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			d.logger.WarnWithContext(ctx, "Ошибка чтения сводки дашборда из кэша", interfaces.ErrField(err))
		}
		return nil
	}
	var summary models.DashboardSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (d *DashboardService) collect(ctx context.Context, accountID string, pred func(*models.SyncRecord, time.Time) bool) ([]*models.SyncRecord, error) {
	now := d.now()
	out := make([]*models.SyncRecord, 0)
	err := d.scan(ctx, accountID, func(rec *models.SyncRecord) {
		if pred(rec, now) {
			out = append(out, rec)
		}
	})
	return out, err
}

// scan постранично обходит все записи аккаунта (или все записи, если accountID пуст)
func (d *DashboardService) scan(ctx context.Context, accountID string, fn func(*models.SyncRecord)) error {
	filter := models.RecordFilter{AccountID: accountID, Limit: dashboardPageSize, SortBy: "product_id"}
	for {
		page, _, err := d.records.ListRecords(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list sync records: %w", err)
		}
		for _, rec := range page {
			fn(rec)
		}
		if len(page) < filter.Limit {
			return nil
		}
		filter.Offset += len(page)
	}
}
