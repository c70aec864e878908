package storage

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id, productID, accountID string, status models.SyncStatus, updated time.Time) *models.SyncRecord {
	rec := models.NewSyncRecord(id, models.SyncKey{ProductID: productID, GroupKey: pkgmodels.DefaultGroupKey, AccountID: accountID}, updated)
	rec.Status = status
	return rec
}

func TestMemoryStorage_UpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newRecord("r1", "p1", "a1", models.StatusPending, created)
	require.NoError(t, s.UpsertRecord(ctx, first))

	second := newRecord("r2", "p1", "a1", models.StatusSynced, created.Add(time.Hour))
	require.NoError(t, s.UpsertRecord(ctx, second))
	assert.Equal(t, "r1", second.ID)
	assert.Equal(t, created, second.CreatedAt)

	got, err := s.GetRecord(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.Status)

	// Изменение возвращенной копии не влияет на хранилище
	got.Status = models.StatusFailed
	again, err := s.GetRecord(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, again.Status)
}

func TestMemoryStorage_UpsertRejectsInvalid(t *testing.T) {
	s := NewMemoryStorage()
	rec := newRecord("r1", "p1", "a1", models.StatusSynced, time.Now())
	rec.DriftScore = 11

	assert.Error(t, s.UpsertRecord(context.Background(), rec))
}

func TestMemoryStorage_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.GetRecord(ctx, models.SyncKey{ProductID: "p", GroupKey: "g", AccountID: "a"})
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = s.FindByExternalID(ctx, "123")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = s.GetProduct(ctx, "p")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = s.GetAccount(ctx, "a")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = s.GetLink(ctx, "p", "g", "a")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	err = s.AppendEvent(ctx, &models.SyncEvent{ProductID: "p", GroupKey: "g", AccountID: "a"})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMemoryStorage_ListRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertRecord(ctx, newRecord("r1", "p1", "a1", models.StatusSynced, base)))
	require.NoError(t, s.UpsertRecord(ctx, newRecord("r2", "p2", "a1", models.StatusFailed, base.Add(2*time.Hour))))
	require.NoError(t, s.UpsertRecord(ctx, newRecord("r3", "p3", "a1", models.StatusDrifted, base.Add(time.Hour))))
	require.NoError(t, s.UpsertRecord(ctx, newRecord("r4", "p4", "a2", models.StatusSynced, base.Add(3*time.Hour))))

	t.Run("default order is updated_at desc", func(t *testing.T) {
		recs, total, err := s.ListRecords(ctx, models.RecordFilter{AccountID: "a1"})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, recs, 3)
		assert.Equal(t, []string{"p2", "p3", "p1"}, productIDs(recs))
	})

	t.Run("status filter", func(t *testing.T) {
		recs, total, err := s.ListRecords(ctx, models.RecordFilter{
			Statuses: []models.SyncStatus{models.StatusSynced},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.ElementsMatch(t, []string{"p1", "p4"}, productIDs(recs))
	})

	t.Run("pagination by product_id", func(t *testing.T) {
		recs, total, err := s.ListRecords(ctx, models.RecordFilter{SortBy: "product_id", Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"p2", "p3"}, productIDs(recs))
	})

	t.Run("offset past the end", func(t *testing.T) {
		recs, total, err := s.ListRecords(ctx, models.RecordFilter{Offset: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Empty(t, recs)
	})
}

func TestMemoryStorage_SortNullsLast(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now()

	withScore := func(id string, score *int) *models.SyncRecord {
		rec := newRecord(id, id, "a1", models.StatusSynced, now)
		rec.HealthScore = score
		return rec
	}
	low, high := 40, 90
	require.NoError(t, s.UpsertRecord(ctx, withScore("p1", nil)))
	require.NoError(t, s.UpsertRecord(ctx, withScore("p2", &low)))
	require.NoError(t, s.UpsertRecord(ctx, withScore("p3", &high)))

	asc, _, err := s.ListRecords(ctx, models.RecordFilter{SortBy: "health_score"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1"}, productIDs(asc))

	desc, _, err := s.ListRecords(ctx, models.RecordFilter{SortBy: "health_score", SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, productIDs(desc))
}

func TestMemoryStorage_EventsAndExternalID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	rec := newRecord("r1", "p1", "a1", models.StatusSynced, time.Now())
	ext := "555"
	rec.ExternalID = &ext
	require.NoError(t, s.UpsertRecord(ctx, rec))

	for _, st := range []models.SyncStatus{models.StatusPending, models.StatusSynced} {
		require.NoError(t, s.AppendEvent(ctx, &models.SyncEvent{
			ProductID: "p1", GroupKey: pkgmodels.DefaultGroupKey, AccountID: "a1", ToStatus: st,
		}))
	}

	events, err := s.ListEvents(ctx, rec.Key(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusSynced, events[0].ToStatus)
	assert.Equal(t, "r1", events[0].RecordID)
	assert.Equal(t, 2, s.EventCount())

	found, err := s.FindByExternalID(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, "p1", found.ProductID)
}

func TestMemoryStorage_Webhooks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	ext := "42"

	require.NoError(t, s.AppendWebhook(ctx, &models.WebhookLogEntry{ID: "w1", Topic: "products/update", ExternalID: &ext}))
	require.NoError(t, s.AppendWebhook(ctx, &models.WebhookLogEntry{ID: "w2", Topic: "orders/create"}))

	got, err := s.GetWebhook(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "products/update", got.Topic)

	list, err := s.ListWebhooks(ctx, models.WebhookFilter{ExternalID: "42"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "w1", list[0].ID)

	all, err := s.ListWebhooks(ctx, models.WebhookFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"w2", "w1"}, []string{all[0].ID, all[1].ID})
}

func TestMemoryStorage_Catalog(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.SaveAccount(ctx, &pkgmodels.MarketplaceAccount{ID: "b", Channel: pkgmodels.ChannelShopify, Active: true}))
	require.NoError(t, s.SaveAccount(ctx, &pkgmodels.MarketplaceAccount{ID: "a", Channel: pkgmodels.ChannelShopify, Active: true}))
	require.NoError(t, s.SaveAccount(ctx, &pkgmodels.MarketplaceAccount{ID: "c", Channel: pkgmodels.ChannelOzon}))

	ids, err := s.ListActiveAccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.SaveLink(ctx, &pkgmodels.MarketplaceLink{ProductID: "p2", GroupKey: "red", AccountID: "a"}))
	require.NoError(t, s.SaveLink(ctx, &pkgmodels.MarketplaceLink{ProductID: "p1", GroupKey: "red", AccountID: "a"}))
	require.NoError(t, s.SaveLink(ctx, &pkgmodels.MarketplaceLink{ProductID: "p1", GroupKey: "blue", AccountID: "a"}))

	linked, err := s.ListLinkedProductIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, linked)

	s.PutProduct(&pkgmodels.Product{ID: "p1", Title: "Shirt", Variants: []pkgmodels.Variant{{SKU: "s1"}}})
	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Variants[0].SKU = "changed"

	again, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", again.Variants[0].SKU)
}

func productIDs(recs []*models.SyncRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ProductID)
	}
	return out
}
