package builders

import (
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSubscriptionBuilderCompleteCoverage(t *testing.T) {
	cfg, err := NewWebhookSubscriptionBuilder().
		WithSyncRelevantTopics().
		WithTopic("orders/create").
		WithCallback("https://sync.example.com/api/v1/webhooks").
		Build()
	require.NoError(t, err)

	assert.Equal(t, models.CoverageComplete, cfg.Coverage())
	assert.True(t, cfg.VerifySignature())
	assert.Len(t, cfg.Topics(), 5)
	assert.Equal(t, "https://sync.example.com/api/v1/webhooks", cfg.CallbackURL())
}

func TestWebhookSubscriptionBuilderPartialCoverage(t *testing.T) {
	cfg, err := NewWebhookSubscriptionBuilder().
		WithTopics(models.TopicProductsUpdate, " Products/Update ", models.TopicProductsCreate).
		WithCallback("http://localhost:8080/hooks").
		WithSignatureVerification(false).
		Build()
	require.NoError(t, err)

	assert.Equal(t, models.CoveragePartial, cfg.Coverage())
	assert.False(t, cfg.VerifySignature())
	assert.Equal(t, []string{models.TopicProductsCreate, models.TopicProductsUpdate}, cfg.Topics())
}

func TestWebhookSubscriptionConfigIsImmutable(t *testing.T) {
	b := NewWebhookSubscriptionBuilder().
		WithTopic(models.TopicProductsUpdate).
		WithCallback("https://example.com/hooks")
	cfg, err := b.Build()
	require.NoError(t, err)

	topics := cfg.Topics()
	topics[0] = "mutated"
	b.WithTopic(models.TopicProductsDelete)

	assert.Equal(t, []string{models.TopicProductsUpdate}, cfg.Topics())
}

func TestWebhookSubscriptionBuilderValidation(t *testing.T) {
	_, err := NewWebhookSubscriptionBuilder().WithCallback("ftp://example.com").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Contains(t, err.Error(), "topics")
	assert.Contains(t, err.Error(), "scheme")
}

func TestSyncConfigurationBuilderBuild(t *testing.T) {
	cfg, err := NewSyncConfigurationBuilder().
		WithProducts("p1", "p2", "p1", "").
		ForAccount("acc-1").
		WithMethod(models.MethodScheduled).
		WithMonitoring(true).
		WithBatchSize(5).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, cfg.ProductIDs())
	assert.Equal(t, "acc-1", cfg.AccountID())
	assert.Equal(t, models.MethodScheduled, cfg.Method())
	assert.True(t, cfg.Monitoring())
	assert.Equal(t, 5, cfg.BatchSize())
}

func TestSyncConfigurationBuilderDefaults(t *testing.T) {
	cfg, err := NewSyncConfigurationBuilder().WithProduct("p1").ForAccount("acc").Build()
	require.NoError(t, err)

	assert.Equal(t, models.MethodManual, cfg.Method())
	assert.False(t, cfg.Monitoring())
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize())
}

func TestSyncConfigurationBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		builder *SyncConfigurationBuilder
		field   string
	}{
		{"no products", NewSyncConfigurationBuilder().ForAccount("acc"), "product_ids"},
		{"no account", NewSyncConfigurationBuilder().WithProduct("p1"), "account_id"},
		{"zero batch", NewSyncConfigurationBuilder().WithProduct("p1").ForAccount("acc").WithBatchSize(0), "batch_size"},
		{"huge batch", NewSyncConfigurationBuilder().WithProduct("p1").ForAccount("acc").WithBatchSize(MaxBatchSize + 1), "batch_size"},
		{"bad method", NewSyncConfigurationBuilder().WithProduct("p1").ForAccount("acc").WithMethod(0), "method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSyncConfigurationPreview(t *testing.T) {
	ids := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		ids = append(ids, "p"+string(rune('a'+i)))
	}

	preview, err := NewSyncConfigurationBuilder().
		WithProducts(ids...).
		ForAccount("acc").
		WithBatchSize(10).
		WithBatchEstimate(3 * time.Second).
		Preview()
	require.NoError(t, err)

	assert.Equal(t, 25, preview.TotalProducts)
	assert.Equal(t, ids, preview.Products)
	assert.Equal(t, 3, preview.Batches)
	assert.Equal(t, 9*time.Second, preview.EstimatedDuration)
	assert.Equal(t, "acc", preview.Configuration.AccountID)
	assert.Equal(t, 10, preview.Configuration.BatchSize)
}
