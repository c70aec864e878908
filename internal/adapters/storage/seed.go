package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
)

// Seed начальные данные каталога для memory хранилища
type Seed struct {
	Products []*pkgmodels.Product            `json:"products"`
	Accounts []*pkgmodels.MarketplaceAccount `json:"accounts"`
	Links    []*pkgmodels.MarketplaceLink    `json:"links"`
}

// LoadSeedFile читает Seed из JSON файла и загружает его в хранилище
func LoadSeedFile(ctx context.Context, m *MemoryStorage, path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	if err := m.Apply(ctx, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Apply добавляет товары, аккаунты и связи. Связь должна ссылаться на известные товар и аккаунт
func (m *MemoryStorage) Apply(ctx context.Context, seed *Seed) error {
	for _, p := range seed.Products {
		if p.ID == "" {
			return fmt.Errorf("seed: product without id")
		}
		m.PutProduct(p)
	}
	for _, acc := range seed.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("seed: account without id")
		}
		if _, err := pkgmodels.ParseChannelType(string(acc.Channel)); err != nil {
			return fmt.Errorf("seed: account %s: %w", acc.ID, err)
		}
		if err := m.SaveAccount(ctx, acc); err != nil {
			return err
		}
	}
	for _, l := range seed.Links {
		if _, err := m.GetProduct(ctx, l.ProductID); err != nil {
			return fmt.Errorf("seed: link %s/%s: %w", l.ProductID, l.AccountID, err)
		}
		if _, err := m.GetAccount(ctx, l.AccountID); err != nil {
			return fmt.Errorf("seed: link %s/%s: %w", l.ProductID, l.AccountID, err)
		}
		if l.GroupKey == "" {
			l.GroupKey = pkgmodels.DefaultGroupKey
		}
		if err := m.SaveLink(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
