package builders

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
)

// WebhookSubscriptionBuilder собирает конфигурацию подписки на вебхуки
type WebhookSubscriptionBuilder struct {
	topics          []string
	seen            map[string]struct{}
	callbackURL     string
	verifySignature bool
}

func NewWebhookSubscriptionBuilder() *WebhookSubscriptionBuilder {
	return &WebhookSubscriptionBuilder{
		seen:            make(map[string]struct{}),
		verifySignature: true,
	}
}

func (b *WebhookSubscriptionBuilder) WithTopic(topic string) *WebhookSubscriptionBuilder {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return b
	}
	if _, ok := b.seen[topic]; !ok {
		b.seen[topic] = struct{}{}
		b.topics = append(b.topics, topic)
	}
	return b
}

func (b *WebhookSubscriptionBuilder) WithTopics(topics ...string) *WebhookSubscriptionBuilder {
	for _, t := range topics {
		b.WithTopic(t)
	}
	return b
}

// WithSyncRelevantTopics подписывает на все темы, которые обрабатывает оркестратор
func (b *WebhookSubscriptionBuilder) WithSyncRelevantTopics() *WebhookSubscriptionBuilder {
	return b.WithTopics(models.SyncRelevantTopics()...)
}

func (b *WebhookSubscriptionBuilder) WithCallback(callbackURL string) *WebhookSubscriptionBuilder {
	b.callbackURL = strings.TrimSpace(callbackURL)
	return b
}

func (b *WebhookSubscriptionBuilder) WithSignatureVerification(enabled bool) *WebhookSubscriptionBuilder {
	b.verifySignature = enabled
	return b
}

// Build возвращает неизменяемую конфигурацию с вычисленным покрытием
func (b *WebhookSubscriptionBuilder) Build() (models.WebhookSubscriptionConfig, error) {
	var errs []error
	if len(b.topics) == 0 {
		errs = append(errs, utils.NewValidationError("topics", "at least one topic is required"))
	}
	if err := validateCallback(b.callbackURL); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return models.WebhookSubscriptionConfig{}, errors.Join(errs...)
	}

	topics := append([]string(nil), b.topics...)
	sort.Strings(topics)

	return models.NewWebhookSubscriptionConfig(topics, b.callbackURL, b.verifySignature, coverageOf(b.seen)), nil
}

func coverageOf(seen map[string]struct{}) models.Coverage {
	for _, t := range models.SyncRelevantTopics() {
		if _, ok := seen[t]; !ok {
			return models.CoveragePartial
		}
	}
	return models.CoverageComplete
}

func validateCallback(raw string) error {
	if raw == "" {
		return utils.NewValidationError("callback_url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return utils.NewValidationError("callback_url", err.Error())
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return utils.NewValidationError("callback_url", "scheme must be http or https")
	}
	if u.Host == "" {
		return utils.NewValidationError("callback_url", "host is required")
	}
	return nil
}
