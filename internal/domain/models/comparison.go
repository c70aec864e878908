package models

// DiffField поле, участвующее в расчете дрейфа
type DiffField string

const (
	FieldTitle        DiffField = "title"
	FieldPrice        DiffField = "price"
	FieldVariants     DiffField = "variants"
	FieldLastModified DiffField = "last_modified"
)

// Difference расхождение одного поля. OldValue значение на маркетплейсе,
// NewValue локальное значение, Weight вклад в drift score
type Difference struct {
	Field    DiffField   `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
	Weight   float64     `json:"weight"`
}

// Comparison результат сравнения локального листинга со снимком
type Comparison struct {
	NeedsSync      bool           `json:"needs_sync"`
	DriftScore     float64        `json:"drift_score"`
	Differences    []Difference   `json:"differences"`
	Recommendation Recommendation `json:"recommendation"`
}

// ComparisonInput элемент пакетного сравнения
type ComparisonInput struct {
	ProductID string    `json:"product_id"`
	GroupKey  string    `json:"group_key,omitempty"`
	Local     Listing   `json:"local"`
	Remote    *Snapshot `json:"remote"`
}

// ProductComparison результат сравнения одного элемента пакета
type ProductComparison struct {
	ProductID  string      `json:"product_id"`
	GroupKey   string      `json:"group_key,omitempty"`
	Comparison *Comparison `json:"comparison,omitempty"`
	// Recommendation дублирует Comparison.Recommendation; unknown, если сравнение невозможно
	Recommendation Recommendation `json:"recommendation"`
	Error          string         `json:"error,omitempty"`
}

// BulkComparison результат пакетного сравнения
type BulkComparison struct {
	Summary     map[Recommendation]int `json:"summary"`
	PerProduct  []ProductComparison    `json:"per_product"`
	DriftAlerts []string               `json:"drift_alerts"`
}
