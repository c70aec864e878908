package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	pkgutils "github.com/athebyme/gomarket-sync/pkg/utils"
)

// DashboardReader запросы дашборда только на чтение
type DashboardReader interface {
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]*models.SyncRecord, int, error)
	History(ctx context.Context, key models.SyncKey, limit int) ([]*models.SyncEvent, error)
	Summary(ctx context.Context, accountID string) (*models.DashboardSummary, error)
	ListNeedsAttention(ctx context.Context, accountID string) ([]*models.SyncRecord, error)
	ListHealthy(ctx context.Context, accountID string) ([]*models.SyncRecord, error)
}

type DashboardHandler struct {
	dashboard DashboardReader
	logger    interfaces.LoggerPort
}

func NewDashboardHandler(dashboard DashboardReader, logger interfaces.LoggerPort) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger.WithComponent("dashboard_handler"),
	}
}

// ListRecords GET /api/v1/records?account_id=&status=failed,drifted&page=&page_size=&sort_by=&sort_desc=
func (h *DashboardHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := queryInt(r, "page", 1)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", pkgutils.DefaultPageSize)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	sortDesc, err := queryBool(r, "sort_desc")
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	onlyLinked, err := queryBool(r, "only_linked")
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	var statuses []models.SyncStatus
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := models.ParseSyncStatus(part)
			if err != nil {
				renderDomainError(w, r, h.logger, utils.NewValidationError("status", err.Error()))
				return
			}
			statuses = append(statuses, st)
		}
	}

	pagination := pkgutils.NewPagination(page, pageSize, q.Get("sort_by"), sortDesc)
	filter := models.RecordFilter{
		ProductID:  q.Get("product_id"),
		AccountID:  q.Get("account_id"),
		GroupKey:   q.Get("group_key"),
		ExternalID: q.Get("external_id"),
		Statuses:   statuses,
		OnlyLinked: onlyLinked,
		SortBy:     pagination.SortBy,
		SortDesc:   pagination.SortDesc,
		Limit:      pagination.GetLimit(),
		Offset:     pagination.GetOffset(),
	}

	records, total, err := h.dashboard.ListRecords(r.Context(), filter)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	pagination.SetTotal(int64(total))

	renderOK(w, r, http.StatusOK, response{Success: true, Data: records, Meta: pagination})
}

// History GET /api/v1/records/history?product_id=&group_key=&account_id=&limit=
func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := models.SyncKey{
		ProductID: q.Get("product_id"),
		GroupKey:  q.Get("group_key"),
		AccountID: q.Get("account_id"),
	}
	if key.ProductID == "" || key.AccountID == "" {
		renderError(w, r, http.StatusBadRequest, "bad_request", "product_id and account_id are required")
		return
	}
	if key.GroupKey == "" {
		key.GroupKey = pkgmodels.DefaultGroupKey
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}

	events, err := h.dashboard.History(r.Context(), key, limit)
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: events})
}

// Summary GET /api/v1/dashboard/summary?account_id=
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: summary})
}

// NeedsAttention GET /api/v1/dashboard/needs-attention?account_id=
func (h *DashboardHandler) NeedsAttention(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.dashboard.ListNeedsAttention)
}

// Healthy GET /api/v1/dashboard/healthy?account_id=
func (h *DashboardHandler) Healthy(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.dashboard.ListHealthy)
}

func (h *DashboardHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) ([]*models.SyncRecord, error)) {
	records, err := fn(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		renderDomainError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []*models.SyncRecord{}
	}
	renderOK(w, r, http.StatusOK, response{Success: true, Data: records, Meta: map[string]int{"total": len(records)}})
}
