package models

import (
	"time"

	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
)

// Темы вебхуков, влияющие на синхронизацию
const (
	TopicProductsCreate        = "products/create"
	TopicProductsUpdate        = "products/update"
	TopicProductsDelete        = "products/delete"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
)

// SyncRelevantTopics возвращает темы, которые обрабатывает оркестратор
func SyncRelevantTopics() []string {
	return []string{
		TopicProductsCreate,
		TopicProductsUpdate,
		TopicProductsDelete,
		TopicInventoryLevelsUpdate,
	}
}

// IsSyncRelevant проверяет, вызывает ли тема проверку синхронизации
func IsSyncRelevant(topic string) bool {
	for _, t := range SyncRelevantTopics() {
		if t == topic {
			return true
		}
	}
	return false
}

// WebhookLogEntry запись журнала входящих вебхуков. Не изменяется после создания
type WebhookLogEntry struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	ExternalID *string   `json:"external_id"`
	RawPayload []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// WebhookFilter фильтр выборки журнала вебхуков
type WebhookFilter struct {
	Topic      string
	ExternalID string
	Limit      int
	Offset     int
}

// RelatedProduct товар, найденный по внешнему ID из вебхука
type RelatedProduct struct {
	Product *pkgmodels.Product `json:"product,omitempty"`
	Record  *SyncRecord        `json:"record"`
}
