package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
)

// Темы Kafka сервиса синхронизации
const (
	TopicSyncEvents   = "marketplace.sync.events"
	TopicWebhooks     = "marketplace.webhooks"
	TopicSyncCommands = "marketplace.sync.commands"
)

// AllTopics темы, которые создаются при старте воркера
func AllTopics() []string {
	return []string{TopicSyncEvents, TopicWebhooks, TopicSyncCommands}
}

// CommandType тип команды синхронизации
type CommandType string

const (
	CommandCheck     CommandType = "check"
	CommandPush      CommandType = "push"
	CommandCheckBulk CommandType = "check_bulk"
)

// SyncCommand команда, поступающая из marketplace.sync.commands
type SyncCommand struct {
	Type       CommandType   `json:"type"`
	AccountID  string        `json:"account_id"`
	ProductID  string        `json:"product_id,omitempty"`
	GroupKey   string        `json:"group_key,omitempty"`
	ProductIDs []string      `json:"product_ids,omitempty"`
	Method     models.Method `json:"method,omitempty"`
	Actor      models.Actor  `json:"actor"`
}

// Validate проверяет обязательные поля команды
func (c SyncCommand) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("command %q: account_id is required", c.Type)
	}
	switch c.Type {
	case CommandCheck, CommandPush:
		if c.ProductID == "" {
			return fmt.Errorf("command %q: product_id is required", c.Type)
		}
	case CommandCheckBulk:
		if len(c.ProductIDs) == 0 {
			return fmt.Errorf("command %q: product_ids are required", c.Type)
		}
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
	return nil
}

// DecodeSyncCommand разбирает и проверяет команду
func DecodeSyncCommand(raw []byte) (SyncCommand, error) {
	var cmd SyncCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return SyncCommand{}, fmt.Errorf("failed to decode sync command: %w", err)
	}
	cmd.Type = CommandType(strings.ToLower(strings.TrimSpace(string(cmd.Type))))
	if err := cmd.Validate(); err != nil {
		return SyncCommand{}, err
	}
	return cmd, nil
}

// WebhookMessage вебхук, переданный воркеру для сопоставления
type WebhookMessage struct {
	ID string `json:"id"`
}

// SyncEventPublisher публикует события синхронизации в Kafka.
// Реализует services.EventPublisher
type SyncEventPublisher struct {
	broker interfaces.MessagingPort
}

func NewSyncEventPublisher(broker interfaces.MessagingPort) *SyncEventPublisher {
	return &SyncEventPublisher{broker: broker}
}

// PublishSyncEvent ключ сообщения - ключ записи, события одной записи попадают в одну партицию
func (p *SyncEventPublisher) PublishSyncEvent(ctx context.Context, ev *models.SyncEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}
	key := models.SyncKey{ProductID: ev.ProductID, GroupKey: ev.GroupKey, AccountID: ev.AccountID}
	return p.broker.Publish(ctx, TopicSyncEvents, key.String(), raw)
}

// PublishWebhook передает ID записи журнала вебхуков воркеру
func (p *SyncEventPublisher) PublishWebhook(ctx context.Context, entry *models.WebhookLogEntry) error {
	raw, err := json.Marshal(WebhookMessage{ID: entry.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}
	key := entry.ID
	if entry.ExternalID != nil {
		key = *entry.ExternalID
	}
	return p.broker.Publish(ctx, TopicWebhooks, key, raw)
}

// PublishCommand отправляет команду синхронизации
func (p *SyncEventPublisher) PublishCommand(ctx context.Context, cmd SyncCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal sync command: %w", err)
	}
	return p.broker.Publish(ctx, TopicSyncCommands, cmd.AccountID, raw)
}
