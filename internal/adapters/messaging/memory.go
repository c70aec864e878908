package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/google/uuid"
)

var ErrBrokerClosed = errors.New("broker is closed")

// defaultMemoryWorkers предел одновременно работающих обработчиков
const defaultMemoryWorkers = 16

// MemoryBroker брокер в памяти процесса для режима без Kafka и тестов.
// Publish только ставит доставку в очередь: обработчики выполняются в отдельных
// горутинах и не зависят от отмены контекста издателя
type MemoryBroker struct {
	mu       sync.RWMutex
	handlers map[string]map[string]interfaces.MessageHandler
	closed   bool
	inflight sync.WaitGroup
	slots    chan struct{}
	logger   interfaces.LoggerPort
}

func NewMemoryBroker(logger interfaces.LoggerPort) *MemoryBroker {
	return &MemoryBroker{
		handlers: make(map[string]map[string]interfaces.MessageHandler),
		slots:    make(chan struct{}, defaultMemoryWorkers),
		logger:   logger.WithComponent("memory-broker"),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic, key string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	deliverCtx := context.WithoutCancel(ctx)
	for _, h := range b.handlers[topic] {
		msg := &interfaces.Message{
			ID:          uuid.New().String(),
			Topic:       topic,
			Key:         key,
			Value:       append([]byte(nil), message...),
			Headers:     map[string]string{},
			PublishedAt: time.Now().UTC(),
		}
		b.inflight.Add(1)
		go b.deliver(deliverCtx, h, msg)
	}
	return nil
}

func (b *MemoryBroker) deliver(ctx context.Context, h interfaces.MessageHandler, msg *interfaces.Message) {
	defer b.inflight.Done()
	b.slots <- struct{}{}
	defer func() { <-b.slots }()

	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorWithContext(ctx, "Паника в обработчике сообщения",
				interfaces.LogField{Key: "topic", Value: msg.Topic},
				interfaces.LogField{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()

	if err := h(ctx, msg); err != nil {
		b.logger.ErrorWithContext(ctx, "Ошибка обработчика сообщения",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.ErrField(err),
		)
	}
}

// Wait блокируется, пока не завершатся все начатые доставки
func (b *MemoryBroker) Wait() {
	b.inflight.Wait()
}

func (b *MemoryBroker) Subscribe(_ context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	if _, ok := b.handlers[topic]; !ok {
		b.handlers[topic] = make(map[string]interfaces.MessageHandler)
	}
	id := uuid.New().String()
	b.handlers[topic][id] = handler

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
		return nil
	}, nil
}

// Close перестает принимать сообщения и дожидается доставок в полете
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[string]map[string]interfaces.MessageHandler)
	b.mu.Unlock()

	b.inflight.Wait()
	return nil
}
