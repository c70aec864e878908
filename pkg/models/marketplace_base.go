package models

import (
	"fmt"
	"strings"
	"time"
)

// ChannelType тип маркетплейса, к которому привязан аккаунт
type ChannelType string

const (
	ChannelShopify     ChannelType = "shopify"
	ChannelWildberries ChannelType = "wildberries"
	ChannelOzon        ChannelType = "ozon"
)

// ParseChannelType разбирает строковое значение канала
func ParseChannelType(s string) (ChannelType, error) {
	switch c := ChannelType(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelShopify, ChannelWildberries, ChannelOzon:
		return c, nil
	default:
		return "", fmt.Errorf("unknown channel type %q", s)
	}
}

// MarketplaceAccount представляет подключенный аккаунт продавца на маркетплейсе
type MarketplaceAccount struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Channel   ChannelType `json:"channel"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// MarketplaceLink связывает группу вариантов товара (например, цвет)
// с листингом в конкретном аккаунте маркетплейса
type MarketplaceLink struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`               // ID товара в основной системе
	GroupKey      string    `json:"group_key"`                // Ключ группировки вариантов
	AccountID     string    `json:"account_id"`               // ID аккаунта маркетплейса
	ListingHandle string    `json:"listing_handle,omitempty"` // Человекочитаемый идентификатор листинга
	CreatedAt     time.Time `json:"created_at"`
}
