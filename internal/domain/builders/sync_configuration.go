package builders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
)

const (
	DefaultBatchSize     = 10
	MaxBatchSize         = 100
	DefaultBatchEstimate = 2 * time.Second
)

// SyncConfigurationBuilder собирает конфигурацию пакетного запуска
type SyncConfigurationBuilder struct {
	productIDs    []string
	seen          map[string]struct{}
	accountID     string
	method        models.Method
	monitoring    bool
	batchSize     int
	batchEstimate time.Duration
}

func NewSyncConfigurationBuilder() *SyncConfigurationBuilder {
	return &SyncConfigurationBuilder{
		seen:          make(map[string]struct{}),
		method:        models.MethodManual,
		batchSize:     DefaultBatchSize,
		batchEstimate: DefaultBatchEstimate,
	}
}

func (b *SyncConfigurationBuilder) WithProduct(productID string) *SyncConfigurationBuilder {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return b
	}
	if _, ok := b.seen[productID]; !ok {
		b.seen[productID] = struct{}{}
		b.productIDs = append(b.productIDs, productID)
	}
	return b
}

func (b *SyncConfigurationBuilder) WithProducts(productIDs ...string) *SyncConfigurationBuilder {
	for _, id := range productIDs {
		b.WithProduct(id)
	}
	return b
}

func (b *SyncConfigurationBuilder) ForAccount(accountID string) *SyncConfigurationBuilder {
	b.accountID = strings.TrimSpace(accountID)
	return b
}

func (b *SyncConfigurationBuilder) WithMethod(method models.Method) *SyncConfigurationBuilder {
	b.method = method
	return b
}

// WithMonitoring true - только проверка статуса, false - отправка на маркетплейс
func (b *SyncConfigurationBuilder) WithMonitoring(monitoring bool) *SyncConfigurationBuilder {
	b.monitoring = monitoring
	return b
}

func (b *SyncConfigurationBuilder) WithBatchSize(size int) *SyncConfigurationBuilder {
	b.batchSize = size
	return b
}

// WithBatchEstimate задает ожидаемую длительность обработки одного пакета
func (b *SyncConfigurationBuilder) WithBatchEstimate(d time.Duration) *SyncConfigurationBuilder {
	b.batchEstimate = d
	return b
}

func (b *SyncConfigurationBuilder) Build() (models.SyncConfiguration, error) {
	var errs []error
	if len(b.productIDs) == 0 {
		errs = append(errs, utils.NewValidationError("product_ids", "at least one product is required"))
	}
	if b.accountID == "" {
		errs = append(errs, utils.NewValidationError("account_id", "is required"))
	}
	if !b.method.Valid() {
		errs = append(errs, utils.NewValidationError("method", fmt.Sprintf("unsupported method %d", uint8(b.method))))
	}
	if b.batchSize < 1 || b.batchSize > MaxBatchSize {
		errs = append(errs, utils.NewValidationError("batch_size", fmt.Sprintf("must be between 1 and %d", MaxBatchSize)))
	}
	if len(errs) > 0 {
		return models.SyncConfiguration{}, errors.Join(errs...)
	}

	return models.NewSyncConfiguration(b.productIDs, b.accountID, b.method, b.monitoring, b.batchSize), nil
}

// Preview оценивает запуск без обращения к оркестратору и хранилищу
func (b *SyncConfigurationBuilder) Preview() (models.SyncPreview, error) {
	cfg, err := b.Build()
	if err != nil {
		return models.SyncPreview{}, err
	}

	products := cfg.ProductIDs()
	batches := (len(products) + cfg.BatchSize() - 1) / cfg.BatchSize()

	return models.SyncPreview{
		TotalProducts:     len(products),
		Products:          products,
		Configuration:     cfg.Summary(),
		Batches:           batches,
		EstimatedDuration: time.Duration(batches) * b.batchEstimate,
	}, nil
}
