package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 15 * time.Second
	defaultRequestsPerMinute = 120
	maxErrorBody             = 4 << 10
)

// ClientConfig настройки HTTP клиента маркетплейса
type ClientConfig struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerMinute int
	// MaxRetries число повторов идемпотентных запросов, 0 отключает повторы.
	// Создание листинга (POST) не повторяется никогда
	MaxRetries int
	// RetryBackoff базовая задержка между повторами, растет экспоненциально
	RetryBackoff time.Duration
	Transport    http.RoundTripper
}

// HTTPClient клиент REST API маркетплейса, реализует services.RemoteClient
type HTTPClient struct {
	baseURL    string
	token      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     interfaces.LoggerPort
}

func NewHTTPClient(cfg ClientConfig, logger interfaces.LoggerPort) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid marketplace base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute),
		logger:     logger.WithComponent("marketplace-client"),
	}, nil
}

// listingPayload формат листинга в API маркетплейса
type listingPayload struct {
	ID        flexibleID       `json:"id,omitempty"`
	Title     string           `json:"title"`
	Price     float64          `json:"price"`
	Currency  string           `json:"currency,omitempty"`
	Variants  []variantPayload `json:"variants"`
	UpdatedAt time.Time        `json:"updated_at"`
	// ProductRef внутренний ID товара, маркетплейс хранит его как метаданные
	ProductRef string `json:"product_ref,omitempty"`
}

type variantPayload struct {
	SKU   string  `json:"sku"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

type pushResponse struct {
	ID       flexibleID `json:"id"`
	Accepted *bool      `json:"accepted"`
	Message  string     `json:"message"`
}

// flexibleID принимает ID как строкой, так и числом
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// FetchSnapshot выполняет GET /listings/{id}
func (c *HTTPClient) FetchSnapshot(ctx context.Context, externalID string) (*models.Snapshot, error) {
	var payload listingPayload
	if err := c.do(ctx, "fetch", http.MethodGet, "/listings/"+url.PathEscape(externalID), nil, &payload); err != nil {
		return nil, err
	}

	snapshot := &models.Snapshot{
		ExternalID: externalID,
		Title:      payload.Title,
		Price:      payload.Price,
		Currency:   payload.Currency,
		UpdatedAt:  payload.UpdatedAt,
	}
	for _, v := range payload.Variants {
		snapshot.Variants = append(snapshot.Variants, models.VariantSnapshot{SKU: v.SKU, Title: v.Title, Price: v.Price})
	}
	return snapshot, nil
}

// Push создает листинг (POST /listings) или обновляет существующий (PUT /listings/{id})
func (c *HTTPClient) Push(ctx context.Context, externalID *string, listing models.Listing) (*models.PushAck, error) {
	body := listingPayload{
		Title:      listing.Title,
		Price:      listing.Price,
		Currency:   listing.Currency,
		UpdatedAt:  listing.UpdatedAt,
		ProductRef: listing.ProductID + ":" + listing.GroupKey,
		Variants:   make([]variantPayload, 0, len(listing.Variants)),
	}
	for _, v := range listing.Variants {
		body.Variants = append(body.Variants, variantPayload{SKU: v.SKU, Title: v.Title, Price: v.Price})
	}

	method, path := http.MethodPost, "/listings"
	if externalID != nil {
		method, path = http.MethodPut, "/listings/"+url.PathEscape(*externalID)
		body.ID = flexibleID(*externalID)
	}

	var resp pushResponse
	if err := c.do(ctx, "push", method, path, body, &resp); err != nil {
		return nil, err
	}

	ack := &models.PushAck{ExternalID: string(resp.ID), Message: resp.Message, Accepted: true}
	if resp.Accepted != nil {
		ack.Accepted = *resp.Accepted
	}
	if ack.ExternalID == "" && externalID != nil {
		ack.ExternalID = *externalID
	}
	return ack, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var raw []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		raw = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return utils.NewRemoteAPIError(op, 0, "", ctx.Err())
			case <-time.After(wait):
			}
		}

		retry, err := c.doOnce(ctx, op, method, path, raw, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || !idempotent(method) {
			break
		}
		c.logger.WarnWithContext(ctx, "Ошибка запроса к маркетплейсу, повтор",
			interfaces.LogField{Key: "op", Value: op},
			interfaces.LogField{Key: "attempt", Value: attempt + 1},
			interfaces.ErrField(err),
		)
	}
	return lastErr
}

// idempotent сообщает, безопасно ли повторить запрос: повтор POST
// после ответа 5xx может создать второй листинг
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// doOnce выполняет один запрос. Первое значение сообщает, имеет ли смысл повтор
func (c *HTTPClient) doOnce(ctx context.Context, op, method, path string, body []byte, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, utils.NewRemoteAPIError(op, 0, "rate limiter", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		retry := ctx.Err() == nil
		return retry, utils.NewRemoteAPIError(op, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, utils.NewRemoteAPIError(op, resp.StatusCode, strings.TrimSpace(string(msg)), nil)
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return false, utils.NewRemoteAPIError(op, resp.StatusCode, "invalid response body", err)
	}
	return false, nil
}
