package utils

import "strings"

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Pagination описывает страницу выборки записей синхронизации
type Pagination struct {
	Page       int    `json:"page"`        // Номер страницы (начиная с 1)
	PageSize   int    `json:"page_size"`   // Размер страницы
	TotalItems int64  `json:"total_items"` // Общее количество элементов
	TotalPages int    `json:"total_pages"` // Общее количество страниц
	SortBy     string `json:"sort_by"`     // Поле для сортировки
	SortDesc   bool   `json:"sort_desc"`   // Сортировка по убыванию
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
}

// sortable перечисляет колонки, по которым разрешена сортировка
var sortable = map[string]struct{}{
	"updated_at":     {},
	"last_synced_at": {},
	"drift_score":    {},
	"health_score":   {},
	"failure_count":  {},
	"product_id":     {},
}

// NewPagination создает новый экземпляр Pagination с заданными параметрами.
// Неизвестное поле сортировки сбрасывается на сортировку по умолчанию
func NewPagination(page, pageSize int, sortBy string, sortDesc bool) *Pagination {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	if _, ok := sortable[sortBy]; !ok {
		sortBy = ""
	}

	return &Pagination{
		Page:     page,
		PageSize: pageSize,
		SortBy:   sortBy,
		SortDesc: sortDesc,
	}
}

// SetTotal устанавливает общее количество элементов и пересчитывает зависимые поля
func (p *Pagination) SetTotal(totalItems int64) {
	p.TotalItems = totalItems
	p.TotalPages = int((totalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
	p.HasNext = p.Page < p.TotalPages
	p.HasPrev = p.Page > 1
}

// GetOffset возвращает смещение для SQL запроса
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit возвращает лимит для SQL запроса
func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// GetSortOrder возвращает строку порядка сортировки для SQL запроса
func (p *Pagination) GetSortOrder() string {
	if p.SortBy == "" {
		return "updated_at DESC"
	}

	direction := "ASC"
	if p.SortDesc {
		direction = "DESC"
	}

	return p.SortBy + " " + direction + " NULLS LAST"
}

// PagedResult представляет результат запроса с пагинацией
type PagedResult struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// NewPagedResult создает новый результат с пагинацией
func NewPagedResult(items interface{}, pagination *Pagination) *PagedResult {
	return &PagedResult{
		Items:      items,
		Pagination: pagination,
	}
}
