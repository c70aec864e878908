package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/google/uuid"
)

const operationWebhookIngest = "webhook_ingest"

// idKeys ключи, в которых ищется внешний ID, в порядке приоритета
var idKeys = []string{"id", "product_id", "external_id", "admin_graphql_api_id"}

// nestedKeys вложенные объекты, в которых ищется ID
var nestedKeys = []string{"product", "data", "object", "resource"}

const maxPayloadDepth = 3

// StatusChecker часть оркестратора, нужная обработчику вебхуков
type StatusChecker interface {
	CheckStatus(ctx context.Context, req CheckRequest) (Result[*models.ProductStatus], error)
}

// WebhookService ведет журнал входящих вебхуков и сопоставляет их с товарами
type WebhookService struct {
	store    WebhookLogStore
	records  SyncRecordStore
	products ProductReader
	metrics  MetricsRecorder
	logger   interfaces.LoggerPort
	now      func() time.Time
}

func NewWebhookService(
	store WebhookLogStore,
	records SyncRecordStore,
	products ProductReader,
	metrics MetricsRecorder,
	logger interfaces.LoggerPort,
) *WebhookService {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &WebhookService{
		store:    store,
		records:  records,
		products: products,
		metrics:  metrics,
		logger:   logger.WithComponent("webhooks"),
		now:      time.Now,
	}
}

// Ingest сохраняет вебхук в журнал. Некорректное тело не является ошибкой:
// запись сохраняется с пустым внешним ID. Ошибка возвращается только при сбое хранилища
func (s *WebhookService) Ingest(ctx context.Context, topic string, payload []byte) (*models.WebhookLogEntry, error) {
	start := s.now()
	entry := &models.WebhookLogEntry{
		ID:         uuid.New().String(),
		Topic:      strings.TrimSpace(topic),
		ExternalID: ExtractExternalID(payload),
		RawPayload: append([]byte(nil), payload...),
		ReceivedAt: start.UTC(),
	}

	if entry.ExternalID == nil {
		integrityErr := &utils.DataIntegrityError{Reason: "webhook payload has no identifiable external id"}
		s.logger.WarnWithContext(ctx, "Вебхук сохранен без идентификатора корреляции",
			interfaces.LogField{Key: "webhook_id", Value: entry.ID},
			interfaces.LogField{Key: "topic", Value: entry.Topic},
			interfaces.LogField{Key: "payload_size", Value: len(payload)},
			interfaces.ErrField(integrityErr),
		)
	}

	if err := s.store.AppendWebhook(ctx, entry); err != nil {
		s.metrics.ObserveOperation(operationWebhookIngest, models.OutcomeError, s.now().Sub(start))
		return nil, fmt.Errorf("failed to append webhook log entry: %w", err)
	}

	outcome := "identified"
	if entry.ExternalID == nil {
		outcome = "unidentified"
	}
	s.metrics.ObserveOperation(operationWebhookIngest, outcome, s.now().Sub(start))

	s.logger.InfoWithContext(ctx, "Вебхук принят",
		interfaces.LogField{Key: "webhook_id", Value: entry.ID},
		interfaces.LogField{Key: "topic", Value: entry.Topic},
		interfaces.LogField{Key: "external_id", Value: entry.ExternalID},
	)
	return entry, nil
}

// FindRelatedProduct ищет запись синхронизации по внешнему ID вебхука.
// Отсутствие совпадения не является ошибкой: возвращается nil
func (s *WebhookService) FindRelatedProduct(ctx context.Context, entry *models.WebhookLogEntry) (*models.RelatedProduct, error) {
	if entry == nil || entry.ExternalID == nil {
		return nil, nil
	}

	rec, err := s.records.FindByExternalID(ctx, *entry.ExternalID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sync record by external id: %w", err)
	}

	related := &models.RelatedProduct{Record: rec}
	product, err := s.products.GetProduct(ctx, rec.ProductID)
	switch {
	case err == nil:
		related.Product = product
	case errors.Is(err, utils.ErrNotFound):
		s.logger.WarnWithContext(ctx, "Запись синхронизации ссылается на отсутствующий товар",
			interfaces.LogField{Key: "product_id", Value: rec.ProductID},
		)
	default:
		return nil, fmt.Errorf("failed to get related product: %w", err)
	}
	return related, nil
}

// Process сопоставляет запись журнала с товаром и, если тема влияет на синхронизацию,
// запускает проверку статуса. Вызывается воркером асинхронно к приему вебхука
func (s *WebhookService) Process(ctx context.Context, entry *models.WebhookLogEntry, checker StatusChecker) error {
	related, err := s.FindRelatedProduct(ctx, entry)
	if err != nil {
		return err
	}
	s.metrics.ObserveWebhook(entry.Topic, related != nil)

	if related == nil {
		s.logger.DebugWithContext(ctx, "Для вебхука не найден связанный товар",
			interfaces.LogField{Key: "webhook_id", Value: entry.ID},
		)
		return nil
	}
	if !models.IsSyncRelevant(entry.Topic) || checker == nil {
		return nil
	}

	res, err := checker.CheckStatus(ctx, CheckRequest{
		ProductID: related.Record.ProductID,
		AccountID: related.Record.AccountID,
		Method:    models.MethodWebhook,
		Actor:     models.SystemActor("webhook"),
	})
	if err != nil {
		return fmt.Errorf("webhook-triggered check failed: %w", err)
	}
	if !res.Success {
		s.logger.WarnWithContext(ctx, "Проверка по вебхуку отклонена",
			interfaces.LogField{Key: "webhook_id", Value: entry.ID},
			interfaces.LogField{Key: "message", Value: res.Message},
		)
	}
	return nil
}

// ExtractExternalID извлекает внешний ID из тела вебхука.
// Поддерживает плоские и вложенные объекты, числовые ID и Shopify GID
func ExtractExternalID(payload []byte) *string {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil
	}

	if id, ok := findID(doc, 0); ok {
		return &id
	}
	return nil
}

func findID(node interface{}, depth int) (string, bool) {
	if depth > maxPayloadDepth {
		return "", false
	}

	switch v := node.(type) {
	case map[string]interface{}:
		for _, key := range idKeys {
			if id, ok := idValue(v[key]); ok {
				return id, true
			}
		}
		for _, key := range nestedKeys {
			if nested, ok := v[key]; ok {
				if id, ok := findID(nested, depth+1); ok {
					return id, true
				}
			}
		}
	case []interface{}:
		if len(v) > 0 {
			return findID(v[0], depth+1)
		}
	}
	return "", false
}

func idValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if strings.HasPrefix(s, "gid://") {
			s = s[strings.LastIndex(s, "/")+1:]
		}
		return s, s != ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		f, err := val.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', 0, 64), true
	default:
		return "", false
	}
}
