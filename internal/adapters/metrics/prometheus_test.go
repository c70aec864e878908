package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Operations(t *testing.T) {
	r := NewRecorder("gomarket")

	r.ObserveOperation("check", "synced", 20*time.Millisecond)
	r.ObserveOperation("check", "synced", 10*time.Millisecond)
	r.ObserveOperation("push", "failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("check", "synced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("push", "failed")))
}

func TestRecorder_Webhooks(t *testing.T) {
	r := NewRecorder("gomarket")

	r.ObserveWebhook("products/update", true)
	r.ObserveWebhook("products/update", false)
	r.ObserveWebhook("products/update", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.webhooks.WithLabelValues("products/update", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.webhooks.WithLabelValues("products/update", "false")))
}

func TestRecorder_HTTP(t *testing.T) {
	r := NewRecorder("gomarket")

	done := r.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activeRequests))
	done("/api/v1/sync/records", "GET", 404, 5*time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.activeRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/sync/records", "GET", "4xx")))
}

func TestRecorder_Worker(t *testing.T) {
	r := NewRecorder("gomarket")

	r.ObserveMessage("marketplace.webhooks", "success", 3*time.Millisecond)
	r.ObserveMessage("marketplace.webhooks", "error", time.Millisecond)
	r.ObserveMessage("marketplace.webhooks", "success", time.Millisecond)
	r.ObserveScheduledRun("skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messagesProcessed.WithLabelValues("marketplace.webhooks", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesProcessed.WithLabelValues("marketplace.webhooks", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scheduledRuns.WithLabelValues("skipped")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder("gomarket")
	r.ObserveDrift("a1", 3.5)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gomarket_sync_drift_score_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "2xx", classifyStatus(201))
	assert.Equal(t, "3xx", classifyStatus(304))
	assert.Equal(t, "4xx", classifyStatus(422))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "unknown", classifyStatus(0))
}
