package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/builders"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
)

const (
	TopicHeader     = "X-Marketplace-Topic"
	SignatureHeader = "X-Marketplace-Signature"
)

// WebhookIngestor сохраняет входящие вебхуки
type WebhookIngestor interface {
	Ingest(ctx context.Context, topic string, payload []byte) (*models.WebhookLogEntry, error)
}

// WebhookLog чтение журнала вебхуков
type WebhookLog interface {
	ListWebhooks(ctx context.Context, filter models.WebhookFilter) ([]*models.WebhookLogEntry, error)
}

// WebhookPublisher передает сохраненный вебхук воркеру
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, entry *models.WebhookLogEntry) error
}

// SignatureVerifier проверяет подпись тела вебхука
type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}

type WebhookHandler struct {
	ingestor  WebhookIngestor
	log       WebhookLog
	publisher WebhookPublisher
	verifier  SignatureVerifier
	logger    interfaces.LoggerPort
}

// NewWebhookHandler создает обработчик. verifier равный nil отключает проверку подписи
func NewWebhookHandler(
	ingestor WebhookIngestor,
	log WebhookLog,
	publisher WebhookPublisher,
	verifier SignatureVerifier,
	logger interfaces.LoggerPort,
) *WebhookHandler {
	return &WebhookHandler{
		ingestor:  ingestor,
		log:       log,
		publisher: publisher,
		verifier:  verifier,
		logger:    logger.WithComponent("webhook_handler"),
	}
}

// Receive POST /api/v1/webhooks
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
			return
		}
		renderError(w, r, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
			h.logger.WarnWithContext(r.Context(), "Вебхук с неверной подписью отклонен", interfaces.ErrField(err))
			renderError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
	}

	topic := strings.TrimSpace(r.Header.Get(TopicHeader))
	if topic == "" {
		topic = strings.TrimSpace(r.URL.Query().Get("topic"))
	}
	if topic == "" {
		renderError(w, r, http.StatusBadRequest, "bad_request", TopicHeader+" header is required")
		return
	}

	entry, err := h.ingestor.Ingest(r.Context(), topic, body)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	if h.publisher != nil && entry.ExternalID != nil && models.IsSyncRelevant(entry.Topic) {
		if err := h.publisher.PublishWebhook(r.Context(), entry); err != nil {
			// Запись уже в журнале, повторная доставка маркетплейсом не нужна
			h.logger.ErrorWithContext(r.Context(), "Не удалось передать вебхук воркеру",
				interfaces.LogField{Key: "webhook_id", Value: entry.ID},
				interfaces.ErrField(err),
			)
		}
	}

	renderOK(w, r, http.StatusAccepted, response{Success: true, Data: entry})
}

// List GET /api/v1/webhooks?topic=&external_id=&limit=&offset=
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	entries, err := h.log.ListWebhooks(r.Context(), models.WebhookFilter{
		Topic:      r.URL.Query().Get("topic"),
		ExternalID: r.URL.Query().Get("external_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.WebhookLogEntry{}
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: entries})
}

type subscriptionRequest struct {
	Topics          []string `json:"topics"`
	SyncRelevant    bool     `json:"sync_relevant"`
	CallbackURL     string   `json:"callback_url"`
	VerifySignature *bool    `json:"verify_signature"`
}

// PreviewSubscription POST /api/v1/webhooks/subscriptions/preview
func (h *WebhookHandler) PreviewSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	b := builders.NewWebhookSubscriptionBuilder().
		WithTopics(req.Topics...).
		WithCallback(req.CallbackURL)
	if req.SyncRelevant {
		b.WithSyncRelevantTopics()
	}
	if req.VerifySignature != nil {
		b.WithSignatureVerification(*req.VerifySignature)
	}

	cfg, err := b.Build()
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: cfg.View()})
}
