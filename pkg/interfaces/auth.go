package interfaces

import "context"

// Principal описывает аутентифицированного пользователя или сервис,
// от имени которого выполняется операция синхронизации
type Principal struct {
	Subject string
	Roles   []string
}

// AuthPort определяет интерфейс для проверки токенов доступа
type AuthPort interface {
	// ValidateToken проверяет токен и возвращает principal
	ValidateToken(ctx context.Context, token string) (*Principal, error)

	// HasRole проверяет наличие роли у principal
	HasRole(principal *Principal, role string) bool
}
