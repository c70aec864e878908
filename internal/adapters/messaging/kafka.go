package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

const (
	headerMessageID = "message_id"
	headerTimestamp = "timestamp"
)

// KafkaConfig настройки подключения к Kafka
type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	// DeliveryTimeout ожидание подтверждения доставки в Publish
	DeliveryTimeout time.Duration
}

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*kafka.Consumer
	consumersMutex sync.Mutex
	cfg            KafkaConfig
	logger         interfaces.LoggerPort
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(cfg KafkaConfig, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "gomarket-sync"
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            strings.Join(cfg.Brokers, ","),
		"client.id":                    cfg.ClientID + "-producer",
		"acks":                         "all",
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             "snappy",
		"linger.ms":                    10,
		"batch.size":                   16384,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]*kafka.Consumer),
		cfg:       cfg,
		logger:    logger.WithComponent("kafka"),
	}, nil
}

// toKafkaMessage преобразует сообщение в kafka.Message со служебными заголовками
func toKafkaMessage(topic, key string, value []byte, headers map[string]string, now time.Time) *kafka.Message {
	kafkaHeaders := make([]kafka.Header, 0, len(headers)+2)
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: headerMessageID, Value: []byte(uuid.New().String())},
		kafka.Header{Key: headerTimestamp, Value: []byte(now.UTC().Format(time.RFC3339Nano))},
	)

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// fromKafkaMessage преобразует kafka.Message в Message
func fromKafkaMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	publishedAt := msg.Timestamp
	if ts, ok := headers[headerTimestamp]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			publishedAt = parsed
		}
	}

	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers[headerMessageID],
		Topic:       topic,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение и ждет подтверждения доставки
func (k *KafkaMessaging) Publish(ctx context.Context, topic, key string, message []byte) error {
	delivery := make(chan kafka.Event, 1)
	if err := k.producer.Produce(toKafkaMessage(topic, key, message, nil, time.Now()), delivery); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", topic, err)
	}

	timer := time.NewTimer(k.cfg.DeliveryTimeout)
	defer timer.Stop()

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("failed to deliver message to %s: %w", topic, m.TopicPartition.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("delivery to %s timed out after %s", topic, k.cfg.DeliveryTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe подписывается на тему в группе потребителей из конфигурации
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return k.SubscribeWithConfig(ctx, topic, handler, interfaces.ConsumerConfig{
		GroupID:     k.cfg.GroupID,
		AutoCommit:  false,
		PollTimeout: 100 * time.Millisecond,
	})
}

// SubscribeWithConfig подписывается на тему с дополнительными настройками.
// При AutoCommit=false смещение фиксируется только после успешной обработки
func (k *KafkaMessaging) SubscribeWithConfig(ctx context.Context, topic string, handler interfaces.MessageHandler, cfg interfaces.ConsumerConfig) (func() error, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 100 * time.Millisecond
	}
	if cfg.AutoCommitInterval <= 0 {
		cfg.AutoCommitInterval = 5 * time.Second
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(k.cfg.Brokers, ","),
		"client.id":                k.cfg.ClientID + "-consumer",
		"group.id":                 cfg.GroupID,
		"auto.offset.reset":        "earliest",
		"enable.auto.commit":       cfg.AutoCommit,
		"auto.commit.interval.ms":  int(cfg.AutoCommitInterval.Milliseconds()),
		"session.timeout.ms":       30000,
		"max.poll.interval.ms":     300000,
		"heartbeat.interval.ms":    3000,
		"reconnect.backoff.ms":     50,
		"reconnect.backoff.max.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	id := uuid.New().String()
	k.consumersMutex.Lock()
	k.consumers[id] = consumer
	k.consumersMutex.Unlock()

	consumeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		k.consume(consumeCtx, consumer, topic, handler, cfg)
	}()

	var once sync.Once
	unsubscribe := func() error {
		var closeErr error
		once.Do(func() {
			cancel()
			<-done
			k.consumersMutex.Lock()
			delete(k.consumers, id)
			k.consumersMutex.Unlock()
			closeErr = consumer.Close()
		})
		return closeErr
	}
	return unsubscribe, nil
}

func (k *KafkaMessaging) consume(ctx context.Context, consumer *kafka.Consumer, topic string, handler interfaces.MessageHandler, cfg interfaces.ConsumerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(cfg.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := fromKafkaMessage(e)
			if err := handler(ctx, msg); err != nil {
				k.logger.ErrorWithContext(ctx, "Ошибка обработчика сообщения",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.ErrField(err),
				)
				continue
			}
			if !cfg.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.WarnWithContext(ctx, "Ошибка фиксации смещения",
						interfaces.LogField{Key: "topic", Value: topic},
						interfaces.ErrField(err),
					)
				}
			}

		case kafka.Error:
			k.logger.ErrorWithContext(ctx, "Ошибка консьюмера kafka",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.ErrField(e),
			)
			if e.IsFatal() {
				return
			}

		default:
			k.logger.DebugWithContext(ctx, "Событие kafka пропущено",
				interfaces.LogField{Key: "event", Value: e.String()},
			)
		}
	}
}

// EnsureTopics создает недостающие темы. Уже существующие темы не считаются ошибкой
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, topics []string, partitions, replicationFactor int) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, t := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	results, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("failed to create topic %s: %s", r.Topic, r.Error.String())
		}
	}
	return nil
}

// Close закрывает потребителей и дожидается отправки сообщений продюсера
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	for id, consumer := range k.consumers {
		_ = consumer.Close()
		delete(k.consumers, id)
	}
	k.consumersMutex.Unlock()

	if remaining := k.producer.Flush(15 * 1000); remaining > 0 {
		k.logger.Warn("Продюсер kafka закрыт с недоставленными сообщениями", interfaces.LogField{Key: "remaining", Value: remaining})
	}
	k.producer.Close()
	return nil
}
