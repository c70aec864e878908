package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/jackc/pgx/v5"
)

// productBaseData формат base_data в каталоге товаров
type productBaseData struct {
	Title    string              `json:"title"`
	Price    float64             `json:"price"`
	Currency string              `json:"currency"`
	Variants []pkgmodels.Variant `json:"variants"`
}

// GetProduct читает товар из каталога
func (s *PostgresStorage) GetProduct(ctx context.Context, productID string) (*pkgmodels.Product, error) {
	query := `SELECT id, base_data, updated_at FROM ` + catalogTable + ` WHERE id = $1`

	var (
		id        string
		raw       []byte
		updatedAt time.Time
	)
	err := s.getExecutor(ctx).QueryRow(ctx, query, productID).Scan(&id, &raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("product", productID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var data productBaseData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, &utils.DataIntegrityError{Reason: fmt.Sprintf("product %s has malformed base_data", id), Err: err}
		}
	}

	return &pkgmodels.Product{
		ID:        id,
		Title:     data.Title,
		Price:     data.Price,
		Currency:  data.Currency,
		Variants:  data.Variants,
		UpdatedAt: updatedAt,
	}, nil
}

// GetAccount получает аккаунт маркетплейса
func (s *PostgresStorage) GetAccount(ctx context.Context, accountID string) (*pkgmodels.MarketplaceAccount, error) {
	query := `SELECT id, name, channel, active, created_at FROM marketplace_accounts WHERE id = $1`

	var acc pkgmodels.MarketplaceAccount
	var channel string
	err := s.getExecutor(ctx).QueryRow(ctx, query, accountID).Scan(&acc.ID, &acc.Name, &channel, &acc.Active, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("marketplace account", accountID)
		}
		return nil, fmt.Errorf("failed to get marketplace account: %w", err)
	}
	// Неизвестный канал не ошибка: такой аккаунт просто не пройдет проверку канала
	acc.Channel = pkgmodels.ChannelType(channel)
	return &acc, nil
}

// SaveAccount создает или обновляет аккаунт
func (s *PostgresStorage) SaveAccount(ctx context.Context, acc *pkgmodels.MarketplaceAccount) error {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO marketplace_accounts (id, name, channel, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $2, channel = $3, active = $4`

	if _, err := s.getExecutor(ctx).Exec(ctx, query, acc.ID, acc.Name, string(acc.Channel), acc.Active, acc.CreatedAt); err != nil {
		return fmt.Errorf("failed to save marketplace account: %w", err)
	}
	return nil
}

// GetLink получает связь группы товара с листингом
func (s *PostgresStorage) GetLink(ctx context.Context, productID, groupKey, accountID string) (*pkgmodels.MarketplaceLink, error) {
	query := `
		SELECT id, product_id, group_key, account_id, COALESCE(listing_handle, ''), created_at
		FROM marketplace_links
		WHERE product_id = $1 AND group_key = $2 AND account_id = $3`

	var l pkgmodels.MarketplaceLink
	err := s.getExecutor(ctx).QueryRow(ctx, query, productID, groupKey, accountID).
		Scan(&l.ID, &l.ProductID, &l.GroupKey, &l.AccountID, &l.ListingHandle, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("marketplace link", productID+":"+groupKey+":"+accountID)
		}
		return nil, fmt.Errorf("failed to get marketplace link: %w", err)
	}
	return &l, nil
}

// SaveLink создает связь, если ее еще нет
func (s *PostgresStorage) SaveLink(ctx context.Context, l *pkgmodels.MarketplaceLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO marketplace_links (id, product_id, group_key, account_id, listing_handle, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (product_id, group_key, account_id) DO UPDATE SET listing_handle = EXCLUDED.listing_handle
		RETURNING id`

	err := s.getExecutor(ctx).QueryRow(ctx, query, l.ID, l.ProductID, l.GroupKey, l.AccountID, l.ListingHandle, l.CreatedAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to save marketplace link: %w", err)
	}
	return nil
}

// ListLinkedProductIDs возвращает товары, у которых есть связь с аккаунтом
func (s *PostgresStorage) ListLinkedProductIDs(ctx context.Context, accountID string) ([]string, error) {
	query := `SELECT DISTINCT product_id FROM marketplace_links WHERE account_id = $1 ORDER BY product_id`

	rows, err := s.getExecutor(ctx).Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked products: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect linked products: %w", err)
	}
	return ids, nil
}

// ListActiveAccountIDs возвращает активные аккаунты (для планировщика)
func (s *PostgresStorage) ListActiveAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.getExecutor(ctx).Query(ctx, `SELECT id FROM marketplace_accounts WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace accounts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect marketplace accounts: %w", err)
	}
	return ids, nil
}
