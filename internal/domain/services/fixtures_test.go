package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeRemote детерминированный клиент маркетплейса
type fakeRemote struct {
	mu         sync.Mutex
	snapshots  map[string]*models.Snapshot
	fetchFails map[string]bool
	pushFails  map[string]bool // по ProductID листинга
	rejectPush bool
	pushed     []models.Listing
	nextID     int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		snapshots:  make(map[string]*models.Snapshot),
		fetchFails: make(map[string]bool),
		pushFails:  make(map[string]bool),
		nextID:     1000,
	}
}

func (f *fakeRemote) FetchSnapshot(_ context.Context, externalID string) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchFails[externalID] {
		return nil, utils.NewRemoteAPIError("fetch", 503, "service unavailable", nil)
	}
	s, ok := f.snapshots[externalID]
	if !ok {
		return nil, utils.NewRemoteAPIError("fetch", 404, "listing not found", nil)
	}
	return s.Clone(), nil
}

func (f *fakeRemote) Push(_ context.Context, externalID *string, listing models.Listing) (*models.PushAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushFails[listing.ProductID] {
		return nil, utils.NewRemoteAPIError("push", 500, "internal error", nil)
	}
	if f.rejectPush {
		return &models.PushAck{Accepted: false, Message: "title too long"}, nil
	}
	f.pushed = append(f.pushed, listing)

	id := ""
	if externalID != nil {
		id = *externalID
	} else {
		f.nextID++
		id = fmt.Sprintf("%d", f.nextID)
	}
	f.snapshots[id] = models.SnapshotFromListing(id, listing, fixedNow)
	return &models.PushAck{ExternalID: id, Accepted: true}, nil
}

func (f *fakeRemote) setSnapshot(s *models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[s.ExternalID] = s
}

func (f *fakeRemote) failFetch(externalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchFails[externalID] = true
}

func (f *fakeRemote) failPush(productID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushFails[productID] = true
}

// heal снимает все сбои, заданные failFetch и failPush
func (f *fakeRemote) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchFails = make(map[string]bool)
	f.pushFails = make(map[string]bool)
}

func (f *fakeRemote) pushedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

// gatedRemote задерживает получение снимка, пока не закрыт release
type gatedRemote struct {
	*fakeRemote
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRemote(inner *fakeRemote) *gatedRemote {
	return &gatedRemote{fakeRemote: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRemote) FetchSnapshot(ctx context.Context, externalID string) (*models.Snapshot, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.fakeRemote.FetchSnapshot(ctx, externalID)
}

type publishedEvents struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func (p *publishedEvents) PublishSyncEvent(_ context.Context, ev *models.SyncEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *publishedEvents) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	store     *storage.MemoryStorage
	cache     *cache.MemoryCache
	remote    *fakeRemote
	published *publishedEvents
	orch      *SyncOrchestrator
}

const (
	testAccount = "acc-shopify"
	ozonAccount = "acc-ozon"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:     storage.NewMemoryStorage(),
		cache:     cache.NewMemoryCache(time.Minute),
		remote:    newFakeRemote(),
		published: &publishedEvents{},
	}
	require.NoError(t, f.store.SaveAccount(ctx, &pkgmodels.MarketplaceAccount{
		ID: testAccount, Name: "Main store", Channel: pkgmodels.ChannelShopify, Active: true,
	}))
	require.NoError(t, f.store.SaveAccount(ctx, &pkgmodels.MarketplaceAccount{
		ID: ozonAccount, Name: "Ozon", Channel: pkgmodels.ChannelOzon, Active: true,
	}))

	f.orch = f.newOrchestrator(f.remote)
	return f
}

// newOrchestrator создает оркестратор над общими хранилищем и кэшем фикстуры
func (f *fixture) newOrchestrator(remote RemoteClient) *SyncOrchestrator {
	now := func() time.Time { return fixedNow }
	return NewSyncOrchestrator(OrchestratorDeps{
		Products:  f.store,
		Accounts:  f.store,
		Links:     f.store,
		Records:   f.store,
		Remote:    remote,
		Cache:     f.cache,
		Events:    f.published,
		Logger:    logger.NewNopLogger(),
		Now:       now,
		Scorer:    NewHealthScorer(DefaultHealthConfig(), now),
		TxManager: nil,
	}, OrchestratorConfig{Channel: pkgmodels.ChannelShopify, BatchSize: 5})
}

func testProduct(id string, groups ...string) *pkgmodels.Product {
	p := &pkgmodels.Product{
		ID:        id,
		Title:     "Product " + id,
		Price:     100,
		Currency:  "USD",
		UpdatedAt: fixedNow.Add(-48 * time.Hour),
	}
	if len(groups) == 0 {
		groups = []string{""}
	}
	for i, g := range groups {
		p.Variants = append(p.Variants, pkgmodels.Variant{
			SKU:      fmt.Sprintf("%s-%d", id, i),
			GroupKey: g,
			Title:    "Variant " + g,
			Price:    100,
			Quantity: 1,
		})
	}
	return p
}

// addProduct кладет товар в каталог и связывает все его группы с аккаунтом
func (f *fixture) addProduct(t *testing.T, p *pkgmodels.Product, link bool) {
	t.Helper()
	f.store.PutProduct(p)
	if !link {
		return
	}
	for _, g := range p.GroupKeys() {
		require.NoError(t, f.store.SaveLink(context.Background(), &pkgmodels.MarketplaceLink{
			ProductID: p.ID, GroupKey: g, AccountID: testAccount,
		}))
	}
}

// addSyncedRecord создает запись с внешним ID и совпадающим снимком на маркетплейсе
func (f *fixture) addSyncedRecord(t *testing.T, p *pkgmodels.Product, externalID string) *models.SyncRecord {
	t.Helper()
	key := models.SyncKey{ProductID: p.ID, GroupKey: pkgmodels.DefaultGroupKey, AccountID: testAccount}
	rec := models.NewSyncRecord("rec-"+p.ID, key, fixedNow.Add(-time.Hour))
	synced := fixedNow.Add(-time.Hour)
	rec.ExternalID = &externalID
	rec.Status = models.StatusSynced
	rec.LastSyncedAt = &synced
	require.NoError(t, f.store.UpsertRecord(context.Background(), rec))

	listing := models.ListingFromProduct(p, pkgmodels.DefaultGroupKey)
	f.remote.setSnapshot(models.SnapshotFromListing(externalID, listing, fixedNow.Add(-time.Hour)))
	return rec
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
