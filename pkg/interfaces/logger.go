package interfaces

import "context"

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// Field короткий конструктор LogField
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// ErrField оборачивает ошибку в поле "error"
func ErrField(err error) LogField {
	if err == nil {
		return LogField{Key: "error", Value: nil}
	}
	return LogField{Key: "error", Value: err.Error()}
}

// LoggerPort определяет интерфейс для системы логирования.
// Поля передаются как LogField или как пары ключ/значение.
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Fatal логирует сообщение и завершает процесс
	Fatal(msg string, args ...interface{})

	// Методы логирования с контекстом: request_id, actor и trace_id
	// из контекста добавляются к записи автоматически

	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает новый логгер с добавленными полями
	WithFields(fields ...LogField) LoggerPort

	// WithField возвращает новый логгер с добавленным полем
	WithField(key string, value interface{}) LoggerPort

	// WithComponent помечает записи именем компонента (orchestrator, webhooks, ...)
	WithComponent(name string) LoggerPort

	SetLevel(level LogLevel)
	GetLevel() LogLevel

	// Sync сбрасывает буферы логгера
	Sync() error
}
