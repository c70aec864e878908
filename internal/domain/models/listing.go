package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
)

// VariantSnapshot вариант в составе листинга
type VariantSnapshot struct {
	SKU   string  `json:"sku"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Listing локальное представление группы товара, отправляемое на маркетплейс
type Listing struct {
	ProductID string            `json:"product_id"`
	GroupKey  string            `json:"group_key"`
	Title     string            `json:"title"`
	Price     float64           `json:"price"`
	Currency  string            `json:"currency"`
	Variants  []VariantSnapshot `json:"variants"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ListingFromProduct строит листинг для группы вариантов товара
func ListingFromProduct(p *pkgmodels.Product, groupKey string) Listing {
	l := Listing{
		ProductID: p.ID,
		GroupKey:  groupKey,
		Title:     p.Title,
		Price:     p.Price,
		Currency:  p.Currency,
		UpdatedAt: p.UpdatedAt,
	}
	if groupKey != pkgmodels.DefaultGroupKey {
		l.Title = fmt.Sprintf("%s - %s", p.Title, groupKey)
	}

	variants := p.VariantsFor(groupKey)
	for i, v := range variants {
		l.Variants = append(l.Variants, VariantSnapshot{SKU: v.SKU, Title: v.Title, Price: v.Price})
		if i == 0 || v.Price < l.Price {
			l.Price = v.Price
		}
	}
	return l
}

// Snapshot представление листинга на стороне маркетплейса
type Snapshot struct {
	ExternalID string            `json:"external_id"`
	Title      string            `json:"title"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency,omitempty"`
	Variants   []VariantSnapshot `json:"variants"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Validate проверяет, что снимок пригоден для сравнения
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrMalformedSnapshot)
	}
	if math.IsNaN(s.Price) || math.IsInf(s.Price, 0) || s.Price < 0 {
		return fmt.Errorf("%w: invalid price %v", ErrMalformedSnapshot, s.Price)
	}
	for i, v := range s.Variants {
		if v.SKU == "" {
			return fmt.Errorf("%w: variant %d has no sku", ErrMalformedSnapshot, i)
		}
		if math.IsNaN(v.Price) || math.IsInf(v.Price, 0) || v.Price < 0 {
			return fmt.Errorf("%w: variant %s has invalid price", ErrMalformedSnapshot, v.SKU)
		}
	}
	return nil
}

// Clone возвращает копию снимка
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Variants != nil {
		c.Variants = append([]VariantSnapshot(nil), s.Variants...)
	}
	return &c
}

// SnapshotFromListing строит снимок из успешно отправленного листинга
func SnapshotFromListing(externalID string, l Listing, at time.Time) *Snapshot {
	return &Snapshot{
		ExternalID: externalID,
		Title:      l.Title,
		Price:      l.Price,
		Currency:   l.Currency,
		Variants:   append([]VariantSnapshot(nil), l.Variants...),
		UpdatedAt:  at,
	}
}

// PushAck ответ маркетплейса на отправку листинга
type PushAck struct {
	ExternalID string `json:"external_id"`
	Accepted   bool   `json:"accepted"`
	Message    string `json:"message,omitempty"`
}
