package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	pkgutils "github.com/athebyme/gomarket-sync/pkg/utils"
	"github.com/google/uuid"
)

// MemoryStorage хранилище в памяти с той же семантикой, что и PostgresStorage.
// Используется в режиме storage.driver=memory и в тестах
type MemoryStorage struct {
	mu       sync.RWMutex
	records  map[models.SyncKey]*models.SyncRecord
	events   []*models.SyncEvent
	webhooks []*models.WebhookLogEntry
	products map[string]*pkgmodels.Product
	accounts map[string]*pkgmodels.MarketplaceAccount
	links    map[models.SyncKey]*pkgmodels.MarketplaceLink
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records:  make(map[models.SyncKey]*models.SyncRecord),
		products: make(map[string]*pkgmodels.Product),
		accounts: make(map[string]*pkgmodels.MarketplaceAccount),
		links:    make(map[models.SyncKey]*pkgmodels.MarketplaceLink),
	}
}

func (m *MemoryStorage) Ping(context.Context) error { return nil }
func (m *MemoryStorage) Close() error               { return nil }

func (m *MemoryStorage) GetRecord(_ context.Context, key models.SyncKey) (*models.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, utils.NewNotFoundError("sync record", key.String())
	}
	return rec.Clone(), nil
}

func (m *MemoryStorage) UpsertRecord(_ context.Context, rec *models.SyncRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()
	if existing, ok := m.records[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	m.records[key] = rec.Clone()
	return nil
}

func (m *MemoryStorage) AppendEvent(_ context.Context, ev *models.SyncEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.SyncKey{ProductID: ev.ProductID, GroupKey: ev.GroupKey, AccountID: ev.AccountID}
	rec, ok := m.records[key]
	if !ok {
		return utils.NewNotFoundError("sync record", key.String())
	}
	c := *ev
	c.RecordID = rec.ID
	m.events = append(m.events, &c)
	return nil
}

func (m *MemoryStorage) FindByExternalID(_ context.Context, externalID string) (*models.SyncRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *models.SyncRecord
	for _, rec := range m.records {
		if rec.ExternalID == nil || *rec.ExternalID != externalID {
			continue
		}
		if found == nil || rec.UpdatedAt.After(found.UpdatedAt) {
			found = rec
		}
	}
	if found == nil {
		return nil, utils.NewNotFoundError("sync record with external id", externalID)
	}
	return found.Clone(), nil
}

func (m *MemoryStorage) ListRecords(_ context.Context, filter models.RecordFilter) ([]*models.SyncRecord, int, error) {
	m.mu.RLock()
	matched := make([]*models.SyncRecord, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Matches(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	m.mu.RUnlock()

	sortRecords(matched, filter.SortBy, filter.SortDesc)

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*models.SyncRecord{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStorage) ListEvents(_ context.Context, key models.SyncKey, limit int) ([]*models.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.SyncEvent, 0)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if ev.ProductID == key.ProductID && ev.GroupKey == key.GroupKey && ev.AccountID == key.AccountID {
			c := *ev
			out = append(out, &c)
		}
	}
	return out, nil
}

// EventCount возвращает число событий в истории
func (m *MemoryStorage) EventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *MemoryStorage) AppendWebhook(_ context.Context, entry *models.WebhookLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	c.RawPayload = append([]byte(nil), entry.RawPayload...)
	m.webhooks = append(m.webhooks, &c)
	return nil
}

func (m *MemoryStorage) GetWebhook(_ context.Context, id string) (*models.WebhookLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.webhooks {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, utils.NewNotFoundError("webhook log entry", id)
}

func (m *MemoryStorage) ListWebhooks(_ context.Context, filter models.WebhookFilter) ([]*models.WebhookLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.WebhookLogEntry, 0)
	skipped := 0
	for i := len(m.webhooks) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.webhooks[i]
		if filter.Topic != "" && e.Topic != filter.Topic {
			continue
		}
		if filter.ExternalID != "" && (e.ExternalID == nil || *e.ExternalID != filter.ExternalID) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// PutProduct добавляет товар в каталог
func (m *MemoryStorage) PutProduct(p *pkgmodels.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	c.Variants = append([]pkgmodels.Variant(nil), p.Variants...)
	m.products[p.ID] = &c
}

func (m *MemoryStorage) GetProduct(_ context.Context, productID string) (*pkgmodels.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, utils.NewNotFoundError("product", productID)
	}
	c := *p
	c.Variants = append([]pkgmodels.Variant(nil), p.Variants...)
	return &c, nil
}

func (m *MemoryStorage) SaveAccount(_ context.Context, acc *pkgmodels.MarketplaceAccount) error {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *acc
	m.accounts[acc.ID] = &c
	return nil
}

func (m *MemoryStorage) GetAccount(_ context.Context, accountID string) (*pkgmodels.MarketplaceAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, utils.NewNotFoundError("marketplace account", accountID)
	}
	c := *acc
	return &c, nil
}

func (m *MemoryStorage) ListActiveAccountIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.accounts))
	for id, acc := range m.accounts {
		if acc.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStorage) SaveLink(_ context.Context, l *pkgmodels.MarketplaceLink) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	key := models.SyncKey{ProductID: l.ProductID, GroupKey: l.GroupKey, AccountID: l.AccountID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.links[key]; ok {
		l.ID = existing.ID
	}
	c := *l
	m.links[key] = &c
	return nil
}

func (m *MemoryStorage) GetLink(_ context.Context, productID, groupKey, accountID string) (*pkgmodels.MarketplaceLink, error) {
	key := models.SyncKey{ProductID: productID, GroupKey: groupKey, AccountID: accountID}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[key]
	if !ok {
		return nil, utils.NewNotFoundError("marketplace link", key.String())
	}
	c := *l
	return &c, nil
}

func (m *MemoryStorage) ListLinkedProductIDs(_ context.Context, accountID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range m.links {
		if key.AccountID == accountID {
			seen[key.ProductID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// sortRecords повторяет ORDER BY PostgresStorage.ListRecords
func sortRecords(records []*models.SyncRecord, sortBy string, desc bool) {
	p := pkgutils.NewPagination(1, 1, sortBy, desc)
	field, descending := p.SortBy, p.SortDesc
	if field == "" {
		field, descending = "updated_at", true
	}

	less := func(a, b *models.SyncRecord) (bool, bool) {
		switch field {
		case "product_id":
			return a.ProductID < b.ProductID, a.ProductID == b.ProductID
		case "drift_score":
			return a.DriftScore < b.DriftScore, a.DriftScore == b.DriftScore
		case "failure_count":
			return a.FailureCount < b.FailureCount, a.FailureCount == b.FailureCount
		case "health_score":
			return nullableLess(a.HealthScore, b.HealthScore, descending)
		case "last_synced_at":
			return nullableTimeLess(a.LastSyncedAt, b.LastSyncedAt, descending)
		default:
			return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		lt, eq := less(records[i], records[j])
		if eq {
			return records[i].ID < records[j].ID
		}
		if descending {
			return !lt
		}
		return lt
	})
}

// nullableLess: NULL всегда в конце (NULLS LAST), независимо от направления
func nullableLess(a, b *int, desc bool) (bool, bool) {
	switch {
	case a == nil && b == nil:
		return false, true
	case a == nil:
		return desc, false
	case b == nil:
		return !desc, false
	default:
		return *a < *b, *a == *b
	}
}

func nullableTimeLess(a, b *time.Time, desc bool) (bool, bool) {
	switch {
	case a == nil && b == nil:
		return false, true
	case a == nil:
		return desc, false
	case b == nil:
		return !desc, false
	default:
		return a.Before(*b), a.Equal(*b)
	}
}
