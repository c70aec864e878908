package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(ClientConfig{
		BaseURL:           srv.URL,
		Token:             "secret",
		RequestsPerMinute: 6000,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestHTTPClient_FetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/listings/123", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": 123,
			"title": "Linen shirt",
			"price": 49.9,
			"currency": "USD",
			"variants": [{"sku": "s-1", "title": "S", "price": 49.9}],
			"updated_at": "2024-05-01T10:00:00Z"
		}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv).FetchSnapshot(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", snap.ExternalID)
	assert.Equal(t, "Linen shirt", snap.Title)
	assert.Equal(t, 49.9, snap.Price)
	require.Len(t, snap.Variants, 1)
	assert.Equal(t, "s-1", snap.Variants[0].SKU)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), snap.UpdatedAt.UTC())
}

func TestHTTPClient_NotFoundIsRemoteError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "listing not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchSnapshot(context.Background(), "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRemoteAPI)

	var remoteErr *utils.RemoteAPIError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Message, "listing not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id": "9", "title": "ok", "price": 1, "variants": []}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv).FetchSnapshot(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "ok", snap.Title)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchSnapshot(context.Background(), "9")
	assert.ErrorIs(t, err, utils.ErrRemoteAPI)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_PushCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Shirt - red", body["title"])
		assert.Equal(t, "p1:red", body["product_ref"])
		_, hasID := body["id"]
		assert.False(t, hasID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 555, "accepted": true}`))
	}))
	defer srv.Close()

	ack, err := newTestClient(t, srv).Push(context.Background(), nil, models.Listing{
		ProductID: "p1",
		GroupKey:  "red",
		Title:     "Shirt - red",
		Price:     10,
		Variants:  []models.VariantSnapshot{{SKU: "r-1", Title: "S", Price: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, "555", ack.ExternalID)
	assert.True(t, ack.Accepted)
}

func TestHTTPClient_PushCreateIsNotRetried(t *testing.T) {
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if atomic.AddInt32(&posts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 556, "accepted": true}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Push(context.Background(), nil, models.Listing{ProductID: "p1", GroupKey: "default"})
	assert.ErrorIs(t, err, utils.ErrRemoteAPI)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
}

func TestHTTPClient_PushUpdateIsRetried(t *testing.T) {
	var puts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		if atomic.AddInt32(&puts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id": "778", "accepted": true}`))
	}))
	defer srv.Close()

	id := "778"
	ack, err := newTestClient(t, srv).Push(context.Background(), &id, models.Listing{ProductID: "p1", GroupKey: "default"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, int32(2), atomic.LoadInt32(&puts))
}

func TestHTTPClient_ZeroRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL, RequestsPerMinute: 6000}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = c.FetchSnapshot(context.Background(), "9")
	assert.ErrorIs(t, err, utils.ErrRemoteAPI)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClient_PushUpdateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/listings/777", r.URL.Path)
		_, _ = w.Write([]byte(`{"accepted": false, "message": "price below minimum"}`))
	}))
	defer srv.Close()

	id := "777"
	ack, err := newTestClient(t, srv).Push(context.Background(), &id, models.Listing{ProductID: "p1", GroupKey: "default"})
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "777", ack.ExternalID)
	assert.Equal(t, "price below minimum", ack.Message)
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{BaseURL: "not a url"}, logger.NewNopLogger())
	assert.Error(t, err)
}
