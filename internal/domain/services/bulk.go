package services

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"golang.org/x/sync/errgroup"
)

// BulkRequest запрос пакетной проверки или отправки
type BulkRequest struct {
	AccountID  string
	ProductIDs []string
	Method     models.Method
	Actor      models.Actor
	// BatchSize ограничивает число одновременно обрабатываемых товаров.
	// 0 означает значение из конфигурации оркестратора
	BatchSize int
}

// CheckStatusBulk проверяет статус каждого товара. Результатов ровно столько,
// сколько идентификаторов; ошибка возвращается только для некорректного ввода
func (o *SyncOrchestrator) CheckStatusBulk(ctx context.Context, req BulkRequest) (Result[*models.BulkResult], error) {
	if err := validateBulk(req); err != nil {
		return fail[*models.BulkResult](err.Error(), nil), err
	}

	items := o.runBatch(ctx, req, func(ctx context.Context, productID string) models.BulkItem {
		res, err := o.CheckStatus(ctx, CheckRequest{
			ProductID: productID,
			AccountID: req.AccountID,
			Method:    req.Method,
			Actor:     req.Actor,
		})
		item := models.BulkItem{ProductID: productID}
		switch {
		case err != nil:
			item.Outcome = models.OutcomeError
			item.Error = err.Error()
		case !res.Success:
			item.Outcome = models.OutcomeError
			item.Error = res.Message
		default:
			item.Status = res.Data
			item.Outcome = res.Data.OverallStatus.String()
			item.Success = res.Data.OverallStatus != models.StatusFailed
			if !item.Success {
				item.Error = res.Message
			}
		}
		return item
	})

	return o.bulkResult("status check", items), nil
}

// PushBulk отправляет каждый товар всеми его группами
func (o *SyncOrchestrator) PushBulk(ctx context.Context, req BulkRequest) (Result[*models.BulkResult], error) {
	if err := validateBulk(req); err != nil {
		return fail[*models.BulkResult](err.Error(), nil), err
	}

	items := o.runBatch(ctx, req, func(ctx context.Context, productID string) models.BulkItem {
		res, err := o.Push(ctx, PushRequest{
			ProductID: productID,
			AccountID: req.AccountID,
			Method:    req.Method,
			Actor:     req.Actor,
		})
		item := models.BulkItem{ProductID: productID, Push: res.Data, Success: res.Success && err == nil}
		switch {
		case err != nil:
			item.Outcome = models.OutcomeError
			item.Error = err.Error()
		default:
			item.Outcome = pushOutcome(res.Data)
			if !res.Success {
				item.Error = res.Message
			}
		}
		return item
	})

	return o.bulkResult("push", items), nil
}

// Run выполняет собранную конфигурацию: мониторинг запускает проверку статуса,
// иначе товары отправляются на маркетплейс
func (o *SyncOrchestrator) Run(ctx context.Context, cfg models.SyncConfiguration, actor models.Actor) (Result[*models.BulkResult], error) {
	req := BulkRequest{
		AccountID:  cfg.AccountID(),
		ProductIDs: cfg.ProductIDs(),
		Method:     cfg.Method(),
		Actor:      actor,
		BatchSize:  cfg.BatchSize(),
	}

	o.logger.InfoWithContext(ctx, "Запуск конфигурации синхронизации",
		interfaces.LogField{Key: "account_id", Value: req.AccountID},
		interfaces.LogField{Key: "products", Value: len(req.ProductIDs)},
		interfaces.LogField{Key: "monitoring", Value: cfg.Monitoring()},
		interfaces.LogField{Key: "method", Value: cfg.Method().String()},
	)

	if cfg.Monitoring() {
		return o.CheckStatusBulk(ctx, req)
	}
	return o.PushBulk(ctx, req)
}

// runBatch обрабатывает товары с ограниченным параллелизмом.
// Слот результата выделен заранее, сбой одного товара не прерывает остальные
func (o *SyncOrchestrator) runBatch(ctx context.Context, req BulkRequest, fn func(ctx context.Context, productID string) models.BulkItem) []models.BulkItem {
	limit := req.BatchSize
	if limit <= 0 {
		limit = o.cfg.BatchSize
	}

	items := make([]models.BulkItem, len(req.ProductIDs))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, productID := range req.ProductIDs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					items[i] = models.BulkItem{
						ProductID: productID,
						Outcome:   models.OutcomeError,
						Error:     fmt.Sprintf("panic: %v", r),
					}
					o.logger.ErrorWithContext(ctx, "Паника при обработке товара",
						interfaces.LogField{Key: "product_id", Value: productID},
						interfaces.LogField{Key: "panic", Value: r},
					)
				}
			}()
			items[i] = fn(ctx, productID)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (o *SyncOrchestrator) bulkResult(operation string, items []models.BulkItem) Result[*models.BulkResult] {
	summary := models.BulkSummary{
		TotalChecked:    len(items),
		CountsByOutcome: make(map[string]int),
	}
	failed := 0
	for _, item := range items {
		summary.CountsByOutcome[item.Outcome]++
		if !item.Success {
			failed++
		}
	}

	result := &models.BulkResult{Summary: summary, Results: items}
	if failed > 0 {
		return ok(fmt.Sprintf("bulk %s finished, %d of %d products failed", operation, failed, len(items)), result)
	}
	return ok(fmt.Sprintf("bulk %s finished", operation), result)
}

func validateBulk(req BulkRequest) error {
	if len(req.ProductIDs) == 0 {
		return utils.NewValidationError("product_ids", utils.ErrEmptyBatch.Error())
	}
	if req.AccountID == "" {
		return utils.NewValidationError("account_id", "is required")
	}
	for i, id := range req.ProductIDs {
		if id == "" {
			return utils.NewValidationError("product_ids", fmt.Sprintf("element %d is empty", i))
		}
	}
	if req.BatchSize < 0 {
		return utils.NewValidationError("batch_size", "must not be negative")
	}
	return nil
}
