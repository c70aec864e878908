package models

import (
	"fmt"
	"time"
)

const (
	MaxDriftScore  = 10.0
	MaxHealthScore = 100
)

// SyncKey уникальный ключ записи синхронизации
type SyncKey struct {
	ProductID string `json:"product_id"`
	GroupKey  string `json:"group_key"`
	AccountID string `json:"account_id"`
}

func (k SyncKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ProductID, k.GroupKey, k.AccountID)
}

// SyncRecord состояние синхронизации пары (товар, группа) с аккаунтом маркетплейса
type SyncRecord struct {
	ID           string     `json:"id"`
	ProductID    string     `json:"product_id"`
	GroupKey     string     `json:"group_key"`
	AccountID    string     `json:"account_id"`
	ExternalID   *string    `json:"external_id"`
	Status       SyncStatus `json:"status"`
	LastSnapshot *Snapshot  `json:"last_snapshot,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	DriftScore   float64    `json:"drift_score"`
	HealthScore  *int       `json:"health_score"`
	FailureCount int        `json:"failure_count"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewSyncRecord создает запись для ключа в статусе unlinked
func NewSyncRecord(id string, key SyncKey, now time.Time) *SyncRecord {
	return &SyncRecord{
		ID:        id,
		ProductID: key.ProductID,
		GroupKey:  key.GroupKey,
		AccountID: key.AccountID,
		Status:    StatusUnlinked,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *SyncRecord) Key() SyncKey {
	return SyncKey{ProductID: r.ProductID, GroupKey: r.GroupKey, AccountID: r.AccountID}
}

// Validate проверяет границы числовых полей
func (r *SyncRecord) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("record %s: invalid status %d", r.Key(), uint8(r.Status))
	}
	if r.DriftScore < 0 || r.DriftScore > MaxDriftScore {
		return fmt.Errorf("record %s: drift score %.2f out of range", r.Key(), r.DriftScore)
	}
	if r.HealthScore != nil && (*r.HealthScore < 0 || *r.HealthScore > MaxHealthScore) {
		return fmt.Errorf("record %s: health score %d out of range", r.Key(), *r.HealthScore)
	}
	if r.FailureCount < 0 {
		return fmt.Errorf("record %s: negative failure count", r.Key())
	}
	return nil
}

// Clone возвращает глубокую копию записи
func (r *SyncRecord) Clone() *SyncRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExternalID != nil {
		id := *r.ExternalID
		c.ExternalID = &id
	}
	if r.LastSyncedAt != nil {
		t := *r.LastSyncedAt
		c.LastSyncedAt = &t
	}
	if r.HealthScore != nil {
		h := *r.HealthScore
		c.HealthScore = &h
	}
	c.LastSnapshot = r.LastSnapshot.Clone()
	return &c
}

// ExternalIDValue возвращает внешний ID или пустую строку
func (r *SyncRecord) ExternalIDValue() string {
	if r.ExternalID == nil {
		return ""
	}
	return *r.ExternalID
}

// RecordFilter фильтр выборки записей синхронизации
type RecordFilter struct {
	ProductID  string
	AccountID  string
	GroupKey   string
	ExternalID string
	Statuses   []SyncStatus
	// OnlyLinked оставляет только записи с внешним ID
	OnlyLinked bool
	SortBy     string
	SortDesc   bool
	Limit      int
	Offset     int
}

// Matches проверяет запись на соответствие фильтру (без учета Limit/Offset)
func (f RecordFilter) Matches(r *SyncRecord) bool {
	if f.ProductID != "" && r.ProductID != f.ProductID {
		return false
	}
	if f.AccountID != "" && r.AccountID != f.AccountID {
		return false
	}
	if f.GroupKey != "" && r.GroupKey != f.GroupKey {
		return false
	}
	if f.ExternalID != "" && r.ExternalIDValue() != f.ExternalID {
		return false
	}
	if f.OnlyLinked && r.ExternalID == nil {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
