package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-sync/internal/api/middleware"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/go-chi/render"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: kind, Code: code, Message: message})
}

func renderOK(w http.ResponseWriter, r *http.Request, code int, body response) {
	render.Status(r, code)
	render.JSON(w, r, body)
}

// renderDomainError сопоставляет ошибки домена с HTTP статусами
func renderDomainError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, err error) {
	switch {
	case errors.Is(err, utils.ErrValidation):
		renderError(w, r, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, utils.ErrNotFound):
		renderError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, utils.ErrSyncInProgress):
		renderError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, utils.ErrDataIntegrity):
		renderError(w, r, http.StatusUnprocessableEntity, "unprocessable_entity", err.Error())
	case errors.Is(err, utils.ErrRemoteAPI):
		logger.ErrorWithContext(r.Context(), "Ошибка API маркетплейса", interfaces.ErrField(err))
		renderError(w, r, http.StatusBadGateway, "remote_error", err.Error())
	default:
		logger.ErrorWithContext(r.Context(), "Внутренняя ошибка", interfaces.ErrField(err))
		renderError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// decodeJSON читает тело запроса. Неизвестные поля отклоняются
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return utils.NewValidationError("body", "request body is empty")
		}
		return utils.NewValidationError("body", err.Error())
	}
	return nil
}

// actorFrom инициатор операции: субъект токена или сам API при выключенной аутентификации
func actorFrom(r *http.Request) models.Actor {
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		return models.Actor{ID: p.Subject, Kind: models.ActorKindUser}
	}
	return models.Actor{ID: "api", Kind: models.ActorKindService}
}

func parseMethod(raw string) (models.Method, error) {
	m, err := models.ParseMethod(raw)
	if err != nil {
		return 0, utils.NewValidationError("method", err.Error())
	}
	return m, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, utils.NewValidationError(name, fmt.Sprintf("invalid value %q", raw))
	}
	return v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, utils.NewValidationError(name, fmt.Sprintf("invalid value %q", raw))
	}
	return v, nil
}
