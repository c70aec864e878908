package models

import "time"

// OutcomeError исход пакетной операции, завершившейся до обращения к маркетплейсу
// (товар не найден, ошибка валидации)
const OutcomeError = "error"

// OutcomeSkipped отправка пропущена, так как запись уже синхронизируется
const OutcomeSkipped = "skipped"

// ProductInfo краткая информация о товаре в результате проверки
type ProductInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	GroupKeys []string `json:"group_keys"`
}

// GroupingStatus состояние одной группы товара
type GroupingStatus struct {
	GroupKey       string         `json:"group_key"`
	ExternalID     *string        `json:"external_id"`
	Status         SyncStatus     `json:"status"`
	DriftScore     float64        `json:"drift_score"`
	HealthScore    *int           `json:"health_score"`
	Grade          Grade          `json:"grade"`
	Recommendation Recommendation `json:"recommendation"`
	Differences    []Difference   `json:"differences,omitempty"`
	LastSyncedAt   *time.Time     `json:"last_synced_at"`
	FailureCount   int            `json:"failure_count"`
	Error          string         `json:"error,omitempty"`
}

// ProductStatus результат проверки статуса товара
type ProductStatus struct {
	Product       ProductInfo      `json:"product"`
	AccountID     string           `json:"account_id"`
	Groupings     []GroupingStatus `json:"groupings"`
	OverallStatus SyncStatus       `json:"overall_status"`
	HealthScore   *int             `json:"health_score"`
	Grade         Grade            `json:"grade"`
}

// BulkSummary агрегат пакетной операции
type BulkSummary struct {
	TotalChecked    int            `json:"total_checked"`
	CountsByOutcome map[string]int `json:"counts_by_outcome"`
}

// BulkItem результат по одному товару пакета
type BulkItem struct {
	ProductID string         `json:"product_id"`
	Success   bool           `json:"success"`
	Outcome   string         `json:"outcome"`
	Status    *ProductStatus `json:"status,omitempty"`
	Push      *PushOutcome   `json:"push,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// BulkResult результат пакетной проверки или отправки
type BulkResult struct {
	Summary BulkSummary `json:"summary"`
	Results []BulkItem  `json:"results"`
}

// GroupingPush результат отправки одной группы
type GroupingPush struct {
	GroupKey    string     `json:"group_key"`
	ExternalID  *string    `json:"external_id"`
	Status      SyncStatus `json:"status"`
	HealthScore *int       `json:"health_score"`
	Grade       Grade      `json:"grade"`
	Success     bool       `json:"success"`
	// Skipped группа не отправлялась: запись обрабатывает другая операция
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushOutcome результат отправки товара
type PushOutcome struct {
	ProductID string         `json:"product_id"`
	AccountID string         `json:"account_id"`
	Groupings []GroupingPush `json:"groupings"`
}

// DashboardSummary агрегаты для дашборда
type DashboardSummary struct {
	Total          int            `json:"total"`
	CountsByStatus map[string]int `json:"counts_by_status"`
	CountsByGrade  map[string]int `json:"counts_by_grade"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
