package models

import "time"

// SyncEvent запись истории переходов записи синхронизации
type SyncEvent struct {
	ID         string     `json:"id"`
	RecordID   string     `json:"record_id"`
	ProductID  string     `json:"product_id"`
	GroupKey   string     `json:"group_key"`
	AccountID  string     `json:"account_id"`
	Operation  string     `json:"operation"` // check или push
	FromStatus SyncStatus `json:"from_status"`
	ToStatus   SyncStatus `json:"to_status"`
	Method     Method     `json:"method"`
	Actor      string     `json:"actor"`
	DriftScore float64    `json:"drift_score"`
	Message    string     `json:"message,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

const (
	OperationCheck = "check"
	OperationPush  = "push"
)
