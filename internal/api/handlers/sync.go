package handlers

import (
	"context"
	"net/http"

	"github.com/athebyme/gomarket-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sync/internal/domain/builders"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/domain/services"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
)

// SyncRunner операции оркестратора, доступные через API
type SyncRunner interface {
	CheckStatus(ctx context.Context, req services.CheckRequest) (services.Result[*models.ProductStatus], error)
	Push(ctx context.Context, req services.PushRequest) (services.Result[*models.PushOutcome], error)
	CheckStatusBulk(ctx context.Context, req services.BulkRequest) (services.Result[*models.BulkResult], error)
	PushBulk(ctx context.Context, req services.BulkRequest) (services.Result[*models.BulkResult], error)
	Run(ctx context.Context, cfg models.SyncConfiguration, actor models.Actor) (services.Result[*models.BulkResult], error)
}

// CommandPublisher ставит команды синхронизации в очередь воркера
type CommandPublisher interface {
	PublishCommand(ctx context.Context, cmd messaging.SyncCommand) error
}

// SyncHandler обработчик операций синхронизации
type SyncHandler struct {
	orchestrator SyncRunner
	commands     CommandPublisher
	logger       interfaces.LoggerPort
}

// NewSyncHandler создает обработчик. commands может быть nil, тогда очередь команд недоступна
func NewSyncHandler(orchestrator SyncRunner, commands CommandPublisher, logger interfaces.LoggerPort) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		commands:     commands,
		logger:       logger.WithComponent("sync_handler"),
	}
}

type checkRequest struct {
	ProductID string `json:"product_id"`
	AccountID string `json:"account_id"`
	Method    string `json:"method"`
}

type pushRequest struct {
	ProductID string `json:"product_id"`
	AccountID string `json:"account_id"`
	GroupKey  string `json:"group_key"`
	Method    string `json:"method"`
}

type bulkRequest struct {
	AccountID  string   `json:"account_id"`
	ProductIDs []string `json:"product_ids"`
	Method     string   `json:"method"`
	Monitoring bool     `json:"monitoring"`
	BatchSize  int      `json:"batch_size"`
}

type commandRequest struct {
	Type       string   `json:"type"`
	AccountID  string   `json:"account_id"`
	ProductID  string   `json:"product_id"`
	GroupKey   string   `json:"group_key"`
	ProductIDs []string `json:"product_ids"`
	Method     string   `json:"method"`
}

// writeResult статус ответа: 200 при успехе, 422 если операция отклонена без ошибки
func writeResult[T any](w http.ResponseWriter, r *http.Request, res services.Result[T]) {
	code := http.StatusOK
	if !res.Success {
		code = http.StatusUnprocessableEntity
	}
	renderOK(w, r, code, response{Success: res.Success, Message: res.Message, Data: res.Data})
}

// CheckStatus POST /api/v1/sync/check
func (h *SyncHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	res, err := h.orchestrator.CheckStatus(r.Context(), services.CheckRequest{
		ProductID: req.ProductID,
		AccountID: req.AccountID,
		Method:    method,
		Actor:     actorFrom(r),
	})
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	writeResult(w, r, res)
}

// Push POST /api/v1/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(r, &req); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	res, err := h.orchestrator.Push(r.Context(), services.PushRequest{
		ProductID: req.ProductID,
		AccountID: req.AccountID,
		GroupKey:  req.GroupKey,
		Method:    method,
		Actor:     actorFrom(r),
	})
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	writeResult(w, r, res)
}

// CheckStatusBulk POST /api/v1/sync/check-bulk
func (h *SyncHandler) CheckStatusBulk(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.orchestrator.CheckStatusBulk)
}

// PushBulk POST /api/v1/sync/push-bulk
func (h *SyncHandler) PushBulk(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.orchestrator.PushBulk)
}

func (h *SyncHandler) bulk(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, services.BulkRequest) (services.Result[*models.BulkResult], error),
) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	if req.BatchSize < 0 || req.BatchSize > builders.MaxBatchSize {
		renderDomainError(w, r, h.logger, utils.NewValidationError("batch_size", "out of range"))
		return
	}

	res, err := run(r.Context(), services.BulkRequest{
		AccountID:  req.AccountID,
		ProductIDs: req.ProductIDs,
		Method:     method,
		Actor:      actorFrom(r),
		BatchSize:  req.BatchSize,
	})
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	writeResult(w, r, res)
}

// configurationFrom собирает конфигурацию запуска через билдер
func configurationFrom(r *http.Request) (*builders.SyncConfigurationBuilder, error) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	b := builders.NewSyncConfigurationBuilder().
		ForAccount(req.AccountID).
		WithProducts(req.ProductIDs...).
		WithMethod(method).
		WithMonitoring(req.Monitoring)
	if req.BatchSize != 0 {
		b.WithBatchSize(req.BatchSize)
	}
	return b, nil
}

// Run POST /api/v1/sync/run
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := configurationFrom(r)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	cfg, err := b.Build()
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	res, err := h.orchestrator.Run(r.Context(), cfg, actorFrom(r))
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	writeResult(w, r, res)
}

// Preview POST /api/v1/sync/preview
func (h *SyncHandler) Preview(w http.ResponseWriter, r *http.Request) {
	b, err := configurationFrom(r)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	preview, err := b.Preview()
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: preview})
}

// EnqueueCommand POST /api/v1/sync/commands, команда выполняется воркером
func (h *SyncHandler) EnqueueCommand(w http.ResponseWriter, r *http.Request) {
	if h.commands == nil {
		renderError(w, r, http.StatusServiceUnavailable, "unavailable", "command queue is disabled")
		return
	}

	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	cmd := messaging.SyncCommand{
		Type:       messaging.CommandType(req.Type),
		AccountID:  req.AccountID,
		ProductID:  req.ProductID,
		GroupKey:   req.GroupKey,
		ProductIDs: req.ProductIDs,
		Method:     method,
		Actor:      actorFrom(r),
	}
	if err := cmd.Validate(); err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := h.commands.PublishCommand(r.Context(), cmd); err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	h.logger.InfoWithContext(r.Context(), "Команда синхронизации поставлена в очередь",
		interfaces.LogField{Key: "type", Value: string(cmd.Type)},
		interfaces.LogField{Key: "account_id", Value: cmd.AccountID},
	)
	renderOK(w, r, http.StatusAccepted, response{Success: true, Message: "command accepted", Data: cmd})
}
