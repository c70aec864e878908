package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/athebyme/gomarket-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sync/internal/domain/builders"
	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/domain/services"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/robfig/cron"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusSkipped = "skipped"
)

// SyncRunner операции оркестратора, которые выполняет воркер
type SyncRunner interface {
	services.StatusChecker
	Push(ctx context.Context, req services.PushRequest) (services.Result[*models.PushOutcome], error)
	CheckStatusBulk(ctx context.Context, req services.BulkRequest) (services.Result[*models.BulkResult], error)
	Run(ctx context.Context, cfg models.SyncConfiguration, actor models.Actor) (services.Result[*models.BulkResult], error)
}

// WebhookProcessor сопоставляет вебхук с товаром и запускает проверку
type WebhookProcessor interface {
	Process(ctx context.Context, entry *models.WebhookLogEntry, checker services.StatusChecker) error
}

// WebhookReader чтение сохраненных вебхуков по ID из сообщения
type WebhookReader interface {
	GetWebhook(ctx context.Context, id string) (*models.WebhookLogEntry, error)
}

// ScheduleSource аккаунты и товары для плановой проверки
type ScheduleSource interface {
	ListActiveAccountIDs(ctx context.Context) ([]string, error)
	ListLinkedProductIDs(ctx context.Context, accountID string) ([]string, error)
}

// MessageRecorder метрики воркера
type MessageRecorder interface {
	ObserveMessage(topic, status string, duration time.Duration)
	ObserveScheduledRun(outcome string)
}

type Config struct {
	// Schedule выражение robfig/cron, пустая строка отключает планировщик
	Schedule  string
	BatchSize int
	// RunTimeout ограничивает один плановый запуск
	RunTimeout time.Duration
}

type Deps struct {
	Broker       interfaces.MessagingPort
	Orchestrator SyncRunner
	Webhooks     WebhookProcessor
	WebhookLog   WebhookReader
	Schedule     ScheduleSource
	Metrics      MessageRecorder
	Logger       interfaces.LoggerPort
}

// Worker обрабатывает вебхуки и команды из брокера и запускает плановые проверки
type Worker struct {
	deps   Deps
	cfg    Config
	logger interfaces.LoggerPort

	cron    *cron.Cron
	running atomic.Bool

	mu          sync.Mutex
	unsubscribe []func() error
	runCtx      context.Context
	cancel      context.CancelFunc
}

func New(deps Deps, cfg Config) (*Worker, error) {
	if cfg.Schedule != "" {
		if _, err := cron.Parse(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = builders.DefaultBatchSize
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}

	return &Worker{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.WithComponent("worker"),
	}, nil
}

// Start подписывается на темы вебхуков и команд и запускает планировщик
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.runCtx, w.cancel = context.WithCancel(ctx)

	subscriptions := map[string]interfaces.MessageHandler{
		messaging.TopicWebhooks:     w.HandleWebhook,
		messaging.TopicSyncCommands: w.HandleCommand,
	}
	for topic, handler := range subscriptions {
		unsubscribe, err := w.deps.Broker.Subscribe(w.runCtx, topic, w.instrument(topic, handler))
		if err != nil {
			w.stopLocked()
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		w.unsubscribe = append(w.unsubscribe, unsubscribe)
		w.logger.Info("Подписка установлена", interfaces.LogField{Key: "topic", Value: topic})
	}

	if w.cfg.Schedule != "" {
		w.cron = cron.New()
		if err := w.cron.AddFunc(w.cfg.Schedule, func() { _ = w.RunScheduled(w.runCtx) }); err != nil {
			w.stopLocked()
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		w.cron.Start()
		w.logger.Info("Планировщик запущен", interfaces.LogField{Key: "schedule", Value: w.cfg.Schedule})
	}
	return nil
}

// Stop останавливает планировщик и отписывается от тем
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopLocked()
}

func (w *Worker) stopLocked() error {
	if w.cron != nil {
		w.cron.Stop()
		w.cron = nil
	}
	if w.cancel != nil {
		w.cancel()
	}

	var errs []error
	for _, unsubscribe := range w.unsubscribe {
		if err := unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	w.unsubscribe = nil
	return errors.Join(errs...)
}

func (w *Worker) instrument(topic string, handler interfaces.MessageHandler) interfaces.MessageHandler {
	return func(ctx context.Context, msg *interfaces.Message) error {
		start := time.Now()
		ctx = utils.WithTraceID(ctx, msg.ID)

		err := handler(ctx, msg)

		status := statusSuccess
		if err != nil {
			status = statusError
			w.logger.ErrorWithContext(ctx, "Ошибка обработки сообщения",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "key", Value: msg.Key},
				interfaces.ErrField(err),
			)
		}
		w.deps.Metrics.ObserveMessage(topic, status, time.Since(start))
		return err
	}
}

// HandleWebhook загружает вебхук из журнала и запускает проверку связанного товара
func (w *Worker) HandleWebhook(ctx context.Context, msg *interfaces.Message) error {
	var wm messaging.WebhookMessage
	if err := json.Unmarshal(msg.Value, &wm); err != nil || wm.ID == "" {
		// Некорректное сообщение подтверждается без повтора
		w.logger.WarnWithContext(ctx, "Некорректное сообщение вебхука пропущено",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
		)
		return nil
	}

	entry, err := w.deps.WebhookLog.GetWebhook(ctx, wm.ID)
	if errors.Is(err, utils.ErrNotFound) {
		w.logger.WarnWithContext(ctx, "Вебхук не найден в журнале", interfaces.LogField{Key: "webhook_id", Value: wm.ID})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load webhook %s: %w", wm.ID, err)
	}

	return w.deps.Webhooks.Process(ctx, entry, w.deps.Orchestrator)
}

// HandleCommand выполняет команду синхронизации
func (w *Worker) HandleCommand(ctx context.Context, msg *interfaces.Message) error {
	cmd, err := messaging.DecodeSyncCommand(msg.Value)
	if err != nil {
		w.logger.WarnWithContext(ctx, "Некорректная команда пропущена",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.ErrField(err),
		)
		return nil
	}

	ctx = utils.WithActorID(ctx, cmd.Actor.String())
	method := cmd.Method
	if !method.Valid() {
		method = models.MethodManual
	}

	var (
		success bool
		message string
	)
	switch cmd.Type {
	case messaging.CommandCheck:
		res, err := w.deps.Orchestrator.CheckStatus(ctx, services.CheckRequest{
			ProductID: cmd.ProductID,
			AccountID: cmd.AccountID,
			Method:    method,
			Actor:     cmd.Actor,
		})
		if err != nil {
			return err
		}
		success, message = res.Success, res.Message
	case messaging.CommandPush:
		res, err := w.deps.Orchestrator.Push(ctx, services.PushRequest{
			ProductID: cmd.ProductID,
			AccountID: cmd.AccountID,
			GroupKey:  cmd.GroupKey,
			Method:    method,
			Actor:     cmd.Actor,
		})
		if err != nil {
			return err
		}
		success, message = res.Success, res.Message
	case messaging.CommandCheckBulk:
		res, err := w.deps.Orchestrator.CheckStatusBulk(ctx, services.BulkRequest{
			AccountID:  cmd.AccountID,
			ProductIDs: cmd.ProductIDs,
			Method:     method,
			Actor:      cmd.Actor,
			BatchSize:  w.cfg.BatchSize,
		})
		if err != nil {
			return err
		}
		success, message = res.Success, res.Message
	}

	w.logger.InfoWithContext(ctx, "Команда обработана",
		interfaces.LogField{Key: "type", Value: string(cmd.Type)},
		interfaces.LogField{Key: "account_id", Value: cmd.AccountID},
		interfaces.LogField{Key: "success", Value: success},
		interfaces.LogField{Key: "message", Value: message},
	)
	return nil
}

// RunScheduled проверяет все связанные товары каждого активного аккаунта.
// Пересекающиеся запуски пропускаются
func (w *Worker) RunScheduled(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn("Предыдущая плановая проверка еще выполняется, запуск пропущен")
		w.deps.Metrics.ObserveScheduledRun(statusSkipped)
		return nil
	}
	defer w.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()

	err := w.runScheduled(ctx)
	outcome := statusSuccess
	if err != nil {
		outcome = statusError
		w.logger.ErrorWithContext(ctx, "Плановая проверка завершилась ошибкой", interfaces.ErrField(err))
	}
	w.deps.Metrics.ObserveScheduledRun(outcome)
	return err
}

func (w *Worker) runScheduled(ctx context.Context) error {
	accounts, err := w.deps.Schedule.ListActiveAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active accounts: %w", err)
	}

	actor := models.SystemActor("scheduler")
	var errs []error
	for _, accountID := range accounts {
		productIDs, err := w.deps.Schedule.ListLinkedProductIDs(ctx, accountID)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", accountID, err))
			continue
		}
		if len(productIDs) == 0 {
			continue
		}

		cfg, err := builders.NewSyncConfigurationBuilder().
			ForAccount(accountID).
			WithProducts(productIDs...).
			WithMethod(models.MethodScheduled).
			WithMonitoring(true).
			WithBatchSize(w.cfg.BatchSize).
			Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", accountID, err))
			continue
		}

		res, err := w.deps.Orchestrator.Run(ctx, cfg, actor)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", accountID, err))
			continue
		}
		w.logger.InfoWithContext(ctx, "Плановая проверка аккаунта завершена",
			interfaces.LogField{Key: "account_id", Value: accountID},
			interfaces.LogField{Key: "products", Value: len(productIDs)},
			interfaces.LogField{Key: "message", Value: res.Message},
		)
	}
	return errors.Join(errs...)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMessage(string, string, time.Duration) {}
func (nopRecorder) ObserveScheduledRun(string)                   {}
