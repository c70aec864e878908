package models

import "time"

// SyncConfiguration неизменяемая конфигурация пакетного запуска
type SyncConfiguration struct {
	productIDs []string
	accountID  string
	method     Method
	monitoring bool
	batchSize  int
}

// NewSyncConfiguration используется билдером; productIDs копируются
func NewSyncConfiguration(productIDs []string, accountID string, method Method, monitoring bool, batchSize int) SyncConfiguration {
	return SyncConfiguration{
		productIDs: append([]string(nil), productIDs...),
		accountID:  accountID,
		method:     method,
		monitoring: monitoring,
		batchSize:  batchSize,
	}
}

// ProductIDs возвращает копию списка товаров
func (c SyncConfiguration) ProductIDs() []string { return append([]string(nil), c.productIDs...) }
func (c SyncConfiguration) AccountID() string    { return c.accountID }
func (c SyncConfiguration) Method() Method       { return c.method }
func (c SyncConfiguration) Monitoring() bool     { return c.monitoring }
func (c SyncConfiguration) BatchSize() int       { return c.batchSize }

// Summary сериализуемое описание конфигурации
func (c SyncConfiguration) Summary() SyncConfigurationSummary {
	return SyncConfigurationSummary{
		AccountID:  c.accountID,
		Method:     c.method,
		Monitoring: c.monitoring,
		BatchSize:  c.batchSize,
	}
}

// SyncConfigurationSummary описание конфигурации без списка товаров
type SyncConfigurationSummary struct {
	AccountID  string `json:"account_id"`
	Method     Method `json:"method"`
	Monitoring bool   `json:"monitoring"`
	BatchSize  int    `json:"batch_size"`
}

// SyncPreview оценка запуска без обращения к оркестратору
type SyncPreview struct {
	TotalProducts     int                      `json:"total_products"`
	Products          []string                 `json:"products"`
	Configuration     SyncConfigurationSummary `json:"configuration"`
	Batches           int                      `json:"batches"`
	EstimatedDuration time.Duration            `json:"estimated_duration"`
}

// Coverage полнота подписки на вебхуки
type Coverage string

const (
	CoverageComplete Coverage = "complete"
	CoveragePartial  Coverage = "partial"
)

// WebhookSubscriptionConfig неизменяемая конфигурация подписки на вебхуки
type WebhookSubscriptionConfig struct {
	topics          []string
	callbackURL     string
	verifySignature bool
	coverage        Coverage
}

func NewWebhookSubscriptionConfig(topics []string, callbackURL string, verifySignature bool, coverage Coverage) WebhookSubscriptionConfig {
	return WebhookSubscriptionConfig{
		topics:          append([]string(nil), topics...),
		callbackURL:     callbackURL,
		verifySignature: verifySignature,
		coverage:        coverage,
	}
}

func (c WebhookSubscriptionConfig) Topics() []string      { return append([]string(nil), c.topics...) }
func (c WebhookSubscriptionConfig) CallbackURL() string   { return c.callbackURL }
func (c WebhookSubscriptionConfig) VerifySignature() bool { return c.verifySignature }
func (c WebhookSubscriptionConfig) Coverage() Coverage    { return c.coverage }

// WebhookSubscriptionView сериализуемое представление подписки
type WebhookSubscriptionView struct {
	Topics          []string `json:"topics"`
	CallbackURL     string   `json:"callback_url"`
	VerifySignature bool     `json:"verify_signature"`
	Coverage        Coverage `json:"coverage"`
}

func (c WebhookSubscriptionConfig) View() WebhookSubscriptionView {
	return WebhookSubscriptionView{
		Topics:          c.Topics(),
		CallbackURL:     c.callbackURL,
		VerifySignature: c.verifySignature,
		Coverage:        c.coverage,
	}
}
