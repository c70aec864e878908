package utils

import (
	"errors"
	"fmt"
)

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- sync ------------------
var (
	ErrValidation     = errors.New("validation error")
	ErrRemoteAPI      = errors.New("remote api error")
	ErrDataIntegrity  = errors.New("data integrity error")
	ErrNotFound       = errors.New("not found")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrEmptyBatch     = errors.New("product id list is empty")
)

// ValidationError нарушение предусловий операции. Состояние не изменяется
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RemoteAPIError ошибка обращения к API маркетплейса (сеть, таймаут, не-2xx ответ)
type RemoteAPIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func NewRemoteAPIError(op string, statusCode int, message string, err error) *RemoteAPIError {
	return &RemoteAPIError{Op: op, StatusCode: statusCode, Message: message, Err: err}
}

func (e *RemoteAPIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote %s failed with status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("remote %s failed: %s", e.Op, msg)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

func (e *RemoteAPIError) Is(target error) bool { return target == ErrRemoteAPI }

// DataIntegrityError некорректные входные данные (например, тело вебхука)
type DataIntegrityError struct {
	Reason string
	Err    error
}

func (e *DataIntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

// NotFoundError сущность не найдена
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsRemote сообщает, вызвана ли ошибка сбоем API маркетплейса
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemoteAPI)
}
