package services

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChecker struct {
	calls []CheckRequest
}

func (r *recordingChecker) CheckStatus(_ context.Context, req CheckRequest) (Result[*models.ProductStatus], error) {
	r.calls = append(r.calls, req)
	return ok[*models.ProductStatus]("status checked", &models.ProductStatus{}), nil
}

func newWebhookService(f *fixture) *WebhookService {
	return NewWebhookService(f.store, f.store, f.store, nil, logger.NewNopLogger())
}

func TestExtractExternalID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *string
	}{
		{"numeric id", `{"id": 632910392, "title": "shirt"}`, strPtr("632910392")},
		{"large numeric id", `{"id": 7654321098765432}`, strPtr("7654321098765432")},
		{"string id", `{"id": "abc-1"}`, strPtr("abc-1")},
		{"product_id key", `{"inventory_item_id": 1, "product_id": 42}`, strPtr("42")},
		{"graphql id", `{"admin_graphql_api_id": "gid://shopify/Product/108828309"}`, strPtr("108828309")},
		{"nested product", `{"product": {"id": 99}}`, strPtr("99")},
		{"nested array", `{"data": [{"id": 5}, {"id": 6}]}`, strPtr("5")},
		{"float id", `{"id": 12.5}`, nil},
		{"boolean id", `{"id": true}`, nil},
		{"empty string id", `{"id": "  "}`, nil},
		{"too deep", `{"data": {"data": {"data": {"data": {"id": 1}}}}}`, nil},
		{"no id", `{"title": "x"}`, nil},
		{"malformed", `{"id": `, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractExternalID([]byte(tt.payload)))
		})
	}
}

func TestWebhookService_IngestUnknownID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newWebhookService(f)

	entry, err := svc.Ingest(ctx, models.TopicProductsUpdate, []byte(`{"id": 123456}`))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "123456", *entry.ExternalID)

	stored, err := f.store.GetWebhook(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicProductsUpdate, stored.Topic)

	related, err := svc.FindRelatedProduct(ctx, entry)
	require.NoError(t, err)
	assert.Nil(t, related)
}

func TestWebhookService_IngestMalformedPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newWebhookService(f)

	entry, err := svc.Ingest(ctx, models.TopicProductsUpdate, []byte(`not json`))
	require.NoError(t, err)
	assert.Nil(t, entry.ExternalID)
	assert.Equal(t, []byte(`not json`), entry.RawPayload)

	related, err := svc.FindRelatedProduct(ctx, entry)
	require.NoError(t, err)
	assert.Nil(t, related)
}

func TestWebhookService_ProcessTriggersCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testProduct("p1")
	f.addProduct(t, p, true)
	f.addSyncedRecord(t, p, "4242")
	svc := newWebhookService(f)

	entry, err := svc.Ingest(ctx, models.TopicProductsUpdate, []byte(`{"product": {"id": 4242}}`))
	require.NoError(t, err)

	related, err := svc.FindRelatedProduct(ctx, entry)
	require.NoError(t, err)
	require.NotNil(t, related)
	assert.Equal(t, "p1", related.Record.ProductID)
	require.NotNil(t, related.Product)
	assert.Equal(t, p.Title, related.Product.Title)

	checker := &recordingChecker{}
	require.NoError(t, svc.Process(ctx, entry, checker))
	require.Len(t, checker.calls, 1)
	assert.Equal(t, "p1", checker.calls[0].ProductID)
	assert.Equal(t, testAccount, checker.calls[0].AccountID)
	assert.Equal(t, models.MethodWebhook, checker.calls[0].Method)
	assert.Equal(t, models.ActorKindSystem, checker.calls[0].Actor.Kind)
}

func TestWebhookService_ProcessIgnoresIrrelevantTopic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testProduct("p1")
	f.addProduct(t, p, true)
	f.addSyncedRecord(t, p, "4242")
	svc := newWebhookService(f)

	entry, err := svc.Ingest(ctx, "orders/create", []byte(`{"id": 4242}`))
	require.NoError(t, err)

	checker := &recordingChecker{}
	require.NoError(t, svc.Process(ctx, entry, checker))
	assert.Empty(t, checker.calls)
}

func TestWebhookService_ProcessWithOrchestrator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testProduct("p1")
	f.addProduct(t, p, true)
	f.addSyncedRecord(t, p, "4242")
	svc := newWebhookService(f)

	entry, err := svc.Ingest(ctx, models.TopicInventoryLevelsUpdate, []byte(`{"product_id": 4242}`))
	require.NoError(t, err)
	require.NoError(t, svc.Process(ctx, entry, f.orch))

	events, err := f.store.ListEvents(ctx, defaultKey("p1"), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.MethodWebhook, events[0].Method)
	assert.Equal(t, "system:webhook", events[0].Actor)
}

func strPtr(s string) *string { return &s }
