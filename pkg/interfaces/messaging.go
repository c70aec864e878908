package interfaces

import (
	"context"
	"time"
)

// Message представляет сообщение, полученное из брокера
type Message struct {
	ID          string            `json:"id"`    // Уникальный ID сообщения
	Topic       string            `json:"topic"` // Тема сообщения
	Key         string            `json:"key"`   // Ключ партиционирования (ключ записи синхронизации)
	Value       []byte            `json:"value"`
	Headers     map[string]string `json:"headers"`
	PublishedAt time.Time         `json:"published_at"`
}

// MessageHandler определяет функцию обработчика сообщений
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig содержит настройки для подписчика на сообщения
type ConsumerConfig struct {
	GroupID            string        // ID группы потребителей
	AutoCommit         bool          // Автоматически подтверждать полученные сообщения
	AutoCommitInterval time.Duration // Интервал автоматического подтверждения
	PollTimeout        time.Duration // Таймаут для опроса новых сообщений
}

// MessagingPort абстрагирует брокер сообщений (Kafka)
type MessagingPort interface {
	// Publish публикует сообщение; key определяет партицию
	Publish(ctx context.Context, topic, key string, message []byte) error

	// Subscribe подписывается на тему. Возвращает функцию отписки
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (func() error, error)

	Close() error
}
