package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/athebyme/gomarket-sync/config"
	"github.com/athebyme/gomarket-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-sync/internal/adapters/marketplace"
	"github.com/athebyme/gomarket-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-sync/internal/adapters/metrics"
	"github.com/athebyme/gomarket-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-sync/internal/api"
	"github.com/athebyme/gomarket-sync/internal/domain/services"
	"github.com/athebyme/gomarket-sync/internal/infrastructure/postgres"
	"github.com/athebyme/gomarket-sync/internal/security"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/internal/worker"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/athebyme/gomarket-sync/pkg/tx"
	"github.com/go-chi/chi/v5"
)

// Store репозитории, которые нужны сервисам синхронизации
type Store interface {
	interfaces.StoragePort
	services.ProductReader
	services.AccountReader
	services.LinkReader
	services.SyncRecordStore
	services.WebhookLogStore
	worker.ScheduleSource
}

// App собранные зависимости сервиса. Общая часть cmd/api и cmd/worker
type App struct {
	Config *config.Config
	Logger interfaces.LoggerPort

	Store   Store
	Cache   interfaces.CachePort
	Broker  interfaces.MessagingPort
	Metrics *metrics.Recorder // nil, если метрики выключены

	Publisher    *messaging.SyncEventPublisher
	Orchestrator *services.SyncOrchestrator
	Dashboard    *services.DashboardService
	Webhooks     *services.WebhookService

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New инициализирует хранилище, кэш, брокер и доменные сервисы.
// При ошибке уже открытые ресурсы закрываются
func New(ctx context.Context, cfg *config.Config, logger interfaces.LoggerPort) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewRecorder(cfg.Metrics.Namespace)
	}

	txManager, err := a.initStorage(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.initCache(ctx); err != nil {
		return nil, err
	}
	if err := a.initBroker(ctx); err != nil {
		return nil, err
	}

	remote, err := marketplace.NewHTTPClient(marketplace.ClientConfig{
		BaseURL:           cfg.Marketplace.BaseURL,
		Token:             cfg.Marketplace.Token,
		Timeout:           cfg.Marketplace.Timeout,
		RequestsPerMinute: cfg.Marketplace.RequestsPerMinute,
		MaxRetries:        cfg.Marketplace.MaxRetries,
		RetryBackoff:      cfg.Marketplace.RetryBackoff,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("marketplace client: %w", err)
	}

	var syncMetrics services.MetricsRecorder
	if a.Metrics != nil {
		syncMetrics = a.Metrics
	}

	comparator := services.NewComparator(services.DefaultComparatorConfig())
	a.Publisher = messaging.NewSyncEventPublisher(a.Broker)
	a.Orchestrator = services.NewSyncOrchestrator(services.OrchestratorDeps{
		Products:   a.Store,
		Accounts:   a.Store,
		Links:      a.Store,
		Records:    a.Store,
		Remote:     remote,
		TxManager:  txManager,
		Cache:      a.Cache,
		Events:     a.Publisher,
		Metrics:    syncMetrics,
		Comparator: comparator,
		Scorer:     services.NewHealthScorer(services.DefaultHealthConfig(), nil),
		Logger:     logger,
	}, services.OrchestratorConfig{
		Channel:   cfg.Channel(),
		BatchSize: cfg.Sync.BatchSize,
		LockTTL:   cfg.Sync.LockTTL,
	})

	dashboardCfg := services.DefaultDashboardConfig()
	dashboardCfg.CriticalThreshold = comparator.Config().CriticalThreshold
	if cfg.Sync.StalenessWindow > 0 {
		dashboardCfg.StalenessWindow = cfg.Sync.StalenessWindow
	}
	if cfg.Sync.SummaryTTL > 0 {
		dashboardCfg.SummaryTTL = cfg.Sync.SummaryTTL
	}
	a.Dashboard = services.NewDashboardService(a.Store, a.Cache, dashboardCfg, logger)
	a.Webhooks = services.NewWebhookService(a.Store, a.Store, a.Store, syncMetrics, logger)

	logger.Info("Сервисы синхронизации инициализированы",
		interfaces.LogField{Key: "channel", Value: string(cfg.Channel())},
		interfaces.LogField{Key: "storage", Value: cfg.Storage.Driver},
		interfaces.LogField{Key: "cache", Value: cfg.Cache.Driver},
		interfaces.LogField{Key: "kafka", Value: cfg.Kafka.Enabled},
	)
	return a, nil
}

func (a *App) initStorage(ctx context.Context) (tx.TxManager, error) {
	cfg := a.Config

	if cfg.Storage.Driver == config.StorageDriverMemory {
		mem := storage.NewMemoryStorage()
		if cfg.Storage.SeedPath != "" {
			seed, err := storage.LoadSeedFile(ctx, mem, cfg.Storage.SeedPath)
			if err != nil {
				return nil, err
			}
			a.Logger.Info("Каталог загружен из файла",
				interfaces.LogField{Key: "path", Value: cfg.Storage.SeedPath},
				interfaces.LogField{Key: "products", Value: len(seed.Products)},
				interfaces.LogField{Key: "accounts", Value: len(seed.Accounts)},
				interfaces.LogField{Key: "links", Value: len(seed.Links)},
			)
		}
		a.Store = mem
		a.Logger.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		return tx.NewNopTxManager(), nil
	}

	params := cfg.PostgresParams()
	dsn, err := utils.GenerateConnectionString(params)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}

	if cfg.Postgres.MigrateOnStart {
		migrationURL, err := utils.GenerateMigrationURL(params)
		if err != nil {
			return nil, fmt.Errorf("postgres migration url: %w", err)
		}
		if err := storage.RunMigrations(migrationURL); err != nil {
			return nil, err
		}
		a.Logger.Info("Миграции применены")
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{
		MaxConns:        int32(cfg.Postgres.PoolSize),
		MinConns:        int32(cfg.Postgres.MinConns),
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	}, a.Logger)
	if err != nil {
		return nil, err
	}

	pg, err := storage.NewPostgresStorageWithPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.Store = pg
	a.onClose("postgres", pg.Close)
	a.Logger.Info("Хранилище PostgreSQL инициализировано")

	return tx.NewTxManager(pool, postgres.RollbackLogger(a.Logger)), nil
}

func (a *App) initCache(ctx context.Context) error {
	cfg := a.Config

	if cfg.Cache.Driver == config.CacheDriverMemory {
		mem := cache.NewMemoryCache(time.Minute)
		a.Cache = mem
		a.onClose("memory cache", mem.Close)
		return nil
	}

	redisCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Cache.Prefix,
		Owner:    lockOwner(),
	})
	if err != nil {
		return err
	}
	a.Cache = redisCache
	a.onClose("redis", redisCache.Close)
	a.Logger.Info("Кэш Redis инициализирован")
	return nil
}

func (a *App) initBroker(ctx context.Context) error {
	cfg := a.Config

	if !cfg.Kafka.Enabled {
		broker := messaging.NewMemoryBroker(a.Logger)
		a.Broker = broker
		a.onClose("memory broker", broker.Close)
		return nil
	}

	kafkaClient, err := messaging.NewKafkaMessaging(messaging.KafkaConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		ClientID:        cfg.Kafka.ClientID,
		DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Broker = kafkaClient
	a.onClose("kafka", kafkaClient.Close)

	if cfg.Kafka.CreateTopics {
		if err := kafkaClient.EnsureTopics(ctx, messaging.AllTopics(), 3, 1); err != nil {
			return err
		}
	}
	a.Logger.Info("Kafka инициализирована", interfaces.LogField{Key: "brokers", Value: cfg.Kafka.Brokers})
	return nil
}

// InProcessWorker истина, когда брокер работает в памяти процесса и воркер
// должен запускаться вместе с API
func (a *App) InProcessWorker() bool {
	return !a.Config.Kafka.Enabled
}

// Health проверяет доступность хранилища
func (a *App) Health(ctx context.Context) error {
	return a.Store.Ping(ctx)
}

// NewWorker создает воркер поверх собранных сервисов
func (a *App) NewWorker() (*worker.Worker, error) {
	deps := worker.Deps{
		Broker:       a.Broker,
		Orchestrator: a.Orchestrator,
		Webhooks:     a.Webhooks,
		WebhookLog:   a.Store,
		Schedule:     a.Store,
		Logger:       a.Logger,
	}
	if a.Metrics != nil {
		deps.Metrics = a.Metrics
	}
	return worker.New(deps, worker.Config{
		Schedule:   a.Config.Sync.Schedule,
		BatchSize:  a.Config.Sync.BatchSize,
		RunTimeout: a.Config.Sync.RunTimeout,
	})
}

// NewRouter собирает HTTP API. Ключи JWT читаются, только если аутентификация включена
func (a *App) NewRouter() (*chi.Mux, error) {
	cfg := a.Config
	deps := api.RouterDeps{
		Orchestrator:   a.Orchestrator,
		Dashboard:      a.Dashboard,
		Webhooks:       a.Webhooks,
		WebhookLog:     a.Store,
		Publisher:      a.Publisher,
		Commands:       a.Publisher,
		Logger:         a.Logger,
		Health:         a.Health,
		MetricsPath:    cfg.Metrics.Endpoint,
		CORSOrigins:    cfg.Security.CORSAllowOrigins,
		BodyLimitBytes: int64(cfg.Server.BodyLimit) << 20,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if a.Metrics != nil {
		deps.Metrics = a.Metrics
	}

	if cfg.Security.AuthEnabled {
		manager, err := a.jwtManager()
		if err != nil {
			return nil, err
		}
		deps.Auth = manager
	}
	if cfg.Security.VerifyWebhooks {
		deps.Verifier = security.NewSignatureVerifier(cfg.Security.WebhookSecret)
	}

	return api.SetupRouter(deps), nil
}

func (a *App) jwtManager() (*security.JWTManager, error) {
	cfg := a.Config.Security

	publicKey, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt public key: %w", err)
	}
	var privateKey []byte
	if cfg.JWTPrivateKeyPath != "" {
		if privateKey, err = os.ReadFile(cfg.JWTPrivateKeyPath); err != nil {
			return nil, fmt.Errorf("failed to read jwt private key: %w", err)
		}
	}
	return security.NewJWTManager(privateKey, publicKey, cfg.JWTExpiration, cfg.JWTIssuer)
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close закрывает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.Logger.Error("Ошибка при закрытии ресурса",
				interfaces.LogField{Key: "resource", Value: c.name},
				interfaces.ErrField(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
