package models

import (
	"sort"
	"time"
)

// DefaultGroupKey используется для вариантов без явной группировки
const DefaultGroupKey = "default"

// Product представляет товар каталога в объеме, нужном для синхронизации.
// Каталог принадлежит другому сервису, здесь он доступен только на чтение
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Variants  []Variant `json:"variants"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Variant вариант товара (размер/цвет)
type Variant struct {
	SKU      string  `json:"sku"`
	GroupKey string  `json:"group_key,omitempty"` // Например, цвет
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Barcode  string  `json:"barcode,omitempty"`
	Quantity int     `json:"quantity"`
}

// GroupKeys возвращает отсортированный список ключей группировки товара
func (p *Product) GroupKeys() []string {
	seen := make(map[string]struct{})
	for _, v := range p.Variants {
		seen[groupKeyOf(v)] = struct{}{}
	}
	if len(seen) == 0 {
		return []string{DefaultGroupKey}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VariantsFor возвращает варианты, относящиеся к группе
func (p *Product) VariantsFor(groupKey string) []Variant {
	var out []Variant
	for _, v := range p.Variants {
		if groupKeyOf(v) == groupKey {
			out = append(out, v)
		}
	}
	return out
}

func groupKeyOf(v Variant) string {
	if v.GroupKey == "" {
		return DefaultGroupKey
	}
	return v.GroupKey
}
