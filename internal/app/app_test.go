package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/config"
	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `{
  "products": [
    {"id": "p1", "title": "Mug", "price": 7, "currency": "USD"},
    {"id": "p2", "title": "Cup", "price": 5, "currency": "USD"}
  ],
  "accounts": [{"id": "acc-1", "name": "Main", "channel": "shopify", "active": true}],
  "links": [{"product_id": "p1", "account_id": "acc-1"}, {"product_id": "p2", "account_id": "acc-1"}]
}`

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	seedPath := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o600))

	cfg := &config.Config{AppName: "gomarket-sync", ENV: "test"}
	cfg.Storage.Driver = config.StorageDriverMemory
	cfg.Storage.SeedPath = seedPath
	cfg.Cache.Driver = config.CacheDriverMemory
	cfg.Kafka.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "apptest"
	cfg.Metrics.Endpoint = "/metrics"
	cfg.Marketplace.Channel = "shopify"
	cfg.Marketplace.BaseURL = "http://127.0.0.1:1"
	cfg.Marketplace.MaxRetries = 0
	cfg.Server.BodyLimit = 1
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Security.CORSAllowOrigins = []string{"*"}
	cfg.Sync.BatchSize = 5
	cfg.Sync.LockTTL = time.Minute
	return cfg
}

func TestNew_MemoryDrivers(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.InProcessWorker())
	assert.NoError(t, a.Health(ctx))

	ids, err := a.Store.ListLinkedProductIDs(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	router, err := a.NewRouter()
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_InvalidSeed(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.SeedPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestNewRouter_AuthRequiresKey(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Security.AuthEnabled = true
	cfg.Security.JWTPublicKeyPath = filepath.Join(t.TempDir(), "missing.pem")

	a, err := New(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewRouter()
	assert.ErrorContains(t, err, "jwt public key")
}

func TestInProcessWorker_ReceivesCommands(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.Sync.Schedule = ""

	a, err := New(ctx, cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	w, err := a.NewWorker()
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Маркетплейс недоступен: проверка завершается ошибкой API, запись переходит в failed
	require.NoError(t, a.Publisher.PublishCommand(ctx, messaging.SyncCommand{
		Type:      messaging.CommandCheck,
		AccountID: "acc-1",
		ProductID: "p1",
	}))

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		a.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(rec.Body.String(), `apptest_worker_messages_processed_total{status=`)
	}, 5*time.Second, 20*time.Millisecond, "worker metrics should be exported")
}

func TestWebhookReturnsBeforeCheckCompletes(t *testing.T) {
	ctx := context.Background()

	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }

	var fetches atomic.Int32
	marketplace := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fetches.Add(1)
		_, _ = w.Write([]byte(`{"id": "4242", "title": "Mug", "price": 7, "currency": "USD", "variants": []}`))
	}))
	defer marketplace.Close()

	cfg := memoryConfig(t)
	cfg.Sync.Schedule = ""
	cfg.Marketplace.BaseURL = marketplace.URL
	cfg.Marketplace.Timeout = 5 * time.Second

	a, err := New(ctx, cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()
	defer unblock()

	w, err := a.NewWorker()
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	key := models.SyncKey{ProductID: "p1", GroupKey: pkgmodels.DefaultGroupKey, AccountID: "acc-1"}
	record := models.NewSyncRecord("rec-p1", key, time.Now().Add(-time.Hour))
	ext := "4242"
	record.ExternalID = &ext
	record.Status = models.StatusSynced
	require.NoError(t, a.Store.UpsertRecord(ctx, record))

	router, err := a.NewRouter()
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/webhooks", strings.NewReader(`{"id": 4242}`))
	require.NoError(t, err)
	req.Header.Set("X-Marketplace-Topic", models.TopicProductsUpdate)

	// Маркетплейс еще не ответил, прием вебхука не должен этого ждать
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Zero(t, fetches.Load())

	unblock()
	assert.Eventually(t, func() bool {
		stored, err := a.Store.GetRecord(ctx, key)
		return err == nil && stored.LastSnapshot != nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), fetches.Load())
}

type pushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Groupings []struct {
			Status  string `json:"status"`
			Skipped bool   `json:"skipped"`
			Message string `json:"message"`
		} `json:"groupings"`
		Results []struct {
			ProductID string `json:"product_id"`
			Outcome   string `json:"outcome"`
			Push      struct {
				Groupings []struct {
					Status  string `json:"status"`
					Skipped bool   `json:"skipped"`
				} `json:"groupings"`
			} `json:"push"`
		} `json:"results"`
	} `json:"data"`
}

func postJSON(t *testing.T, url string, body interface{}) (int, pushResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out pushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestPushWhileLocked(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), logger.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	router, err := a.NewRouter()
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	defer srv.Close()

	lockKey := "sync:lock:" + models.SyncKey{ProductID: "p1", GroupKey: pkgmodels.DefaultGroupKey, AccountID: "acc-1"}.String()
	locked, err := a.Cache.Lock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)
	defer a.Cache.Unlock(ctx, lockKey)

	code, single := postJSON(t, srv.URL+"/api/v1/sync/push", map[string]string{
		"product_id": "p1",
		"account_id": "acc-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, single.Success)
	assert.Equal(t, "sync already in progress", single.Message)
	require.Len(t, single.Data.Groupings, 1)
	assert.True(t, single.Data.Groupings[0].Skipped)
	assert.Equal(t, "pending", single.Data.Groupings[0].Status)

	code, bulk := postJSON(t, srv.URL+"/api/v1/sync/push-bulk", map[string]interface{}{
		"account_id":  "acc-1",
		"product_ids": []string{"p1", "p2"},
	})
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, bulk.Data.Results, 2)
	assert.Equal(t, "p1", bulk.Data.Results[0].ProductID)
	assert.Equal(t, models.OutcomeSkipped, bulk.Data.Results[0].Outcome)
	assert.True(t, bulk.Data.Results[0].Push.Groupings[0].Skipped)
	// Маркетплейс недоступен: вторая позиция завершается ошибкой, но ответ кодируется целиком
	assert.Equal(t, "p2", bulk.Data.Results[1].ProductID)
	assert.Equal(t, "failed", bulk.Data.Results[1].Outcome)
}
