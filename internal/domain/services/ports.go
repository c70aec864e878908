package services

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
)

// RemoteClient клиент API маркетплейса. Повторы и таймауты на стороне клиента
type RemoteClient interface {
	// FetchSnapshot получает текущее состояние листинга.
	// Ошибки сети и не-2xx ответы возвращаются как *utils.RemoteAPIError
	FetchSnapshot(ctx context.Context, externalID string) (*models.Snapshot, error)

	// Push создает (externalID == nil) или обновляет листинг
	Push(ctx context.Context, externalID *string, listing models.Listing) (*models.PushAck, error)
}

// ProductReader доступ на чтение к каталогу товаров
type ProductReader interface {
	// GetProduct возвращает utils.ErrNotFound, если товар не найден
	GetProduct(ctx context.Context, productID string) (*pkgmodels.Product, error)
}

// AccountReader доступ к аккаунтам маркетплейсов
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*pkgmodels.MarketplaceAccount, error)
}

// LinkReader доступ к связям групп товара с листингами
type LinkReader interface {
	// GetLink возвращает utils.ErrNotFound, если связи нет
	GetLink(ctx context.Context, productID, groupKey, accountID string) (*pkgmodels.MarketplaceLink, error)
	// ListLinkedProductIDs возвращает товары, у которых есть хотя бы одна связь с аккаунтом
	ListLinkedProductIDs(ctx context.Context, accountID string) ([]string, error)
}

// SyncRecordStore хранилище записей синхронизации. Единственный писатель - оркестратор
type SyncRecordStore interface {
	// GetRecord возвращает utils.ErrNotFound, если записи нет
	GetRecord(ctx context.Context, key models.SyncKey) (*models.SyncRecord, error)
	// UpsertRecord атомарно вставляет или обновляет запись по ключу
	UpsertRecord(ctx context.Context, record *models.SyncRecord) error
	// AppendEvent добавляет событие в историю переходов
	AppendEvent(ctx context.Context, event *models.SyncEvent) error
	// FindByExternalID возвращает utils.ErrNotFound, если записи нет
	FindByExternalID(ctx context.Context, externalID string) (*models.SyncRecord, error)
	// ListRecords возвращает записи по фильтру и общее количество совпадений
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]*models.SyncRecord, int, error)
	// ListEvents возвращает историю записи от новых к старым
	ListEvents(ctx context.Context, key models.SyncKey, limit int) ([]*models.SyncEvent, error)
}

// WebhookLogStore журнал входящих вебхуков (только добавление)
type WebhookLogStore interface {
	AppendWebhook(ctx context.Context, entry *models.WebhookLogEntry) error
	GetWebhook(ctx context.Context, id string) (*models.WebhookLogEntry, error)
	ListWebhooks(ctx context.Context, filter models.WebhookFilter) ([]*models.WebhookLogEntry, error)
}

// EventPublisher публикует события синхронизации во внешний брокер
type EventPublisher interface {
	PublishSyncEvent(ctx context.Context, event *models.SyncEvent) error
}

// MetricsRecorder собирает метрики синхронизации
type MetricsRecorder interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
	ObserveDrift(accountID string, drift float64)
	ObserveWebhook(topic string, correlated bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ObserveDrift(string, float64)                   {}
func (nopMetrics) ObserveWebhook(string, bool)                    {}

// NopMetrics возвращает MetricsRecorder без побочных эффектов
func NopMetrics() MetricsRecorder { return nopMetrics{} }
