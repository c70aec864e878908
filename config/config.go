package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sync/internal/utils"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       int // максимальный размер запроса в МБ
	}

	Storage struct {
		Driver string // postgres | memory
		// SeedPath JSON с товарами, аккаунтами и связями для memory хранилища
		SeedPath string
	}

	Postgres struct {
		Host            string
		Port            int
		User            string
		Password        string
		DBName          string
		SSLMode         string
		Timeout         time.Duration
		PoolSize        int // размер пула соединений
		MinConns        int
		MaxConnLifetime time.Duration
		MaxConnIdleTime time.Duration
		MigrateOnStart  bool
	}

	Cache struct {
		Driver string // redis | memory
		Prefix string
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
		PoolSize int
	}

	Kafka struct {
		Enabled         bool          `mapstructure:"enabled"`
		Brokers         []string      `mapstructure:"brokers"`
		GroupID         string        `mapstructure:"group_id"`
		ClientID        string        `mapstructure:"client_id"`
		DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
		CreateTopics    bool          `mapstructure:"create_topics"`
	}

	Metrics struct {
		Enabled   bool
		Namespace string
		Endpoint  string
		Port      int // порт HTTP сервера метрик воркера
	}

	Security struct {
		AuthEnabled       bool
		JWTPublicKeyPath  string
		JWTPrivateKeyPath string
		JWTIssuer         string
		JWTExpiration     time.Duration
		WebhookSecret     string
		VerifyWebhooks    bool
		CORSAllowOrigins  []string
	}

	Marketplace struct {
		Channel           string
		BaseURL           string
		Token             string
		Timeout           time.Duration
		RequestsPerMinute int
		MaxRetries        int
		RetryBackoff      time.Duration
	}

	Sync struct {
		Schedule        string // cron выражение планировщика проверок
		BatchSize       int
		LockTTL         time.Duration
		StalenessWindow time.Duration
		SummaryTTL      time.Duration
		RunTimeout      time.Duration
	}
}

// Load загружает конфигурацию из файла и переменных окружения.
// configPath может быть именем конфигурации ("config") или путем к yaml файлу
func Load(configPath string) (*Config, error) {
	v := viper.New()

	switch {
	case configPath == "":
		v.SetConfigName("config")
	case filepath.Ext(configPath) != "":
		v.SetConfigFile(configPath)
	default:
		v.SetConfigName(configPath)
	}
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Файл не найден, используем только переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if _, err := utils.GenerateConnectionString(c.PostgresParams()); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}

	if _, err := pkgmodels.ParseChannelType(c.Marketplace.Channel); err != nil {
		errs = append(errs, fmt.Errorf("marketplace: %w", err))
	}
	if c.Marketplace.BaseURL == "" {
		errs = append(errs, errors.New("marketplace: base url is required"))
	}
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 100 {
		errs = append(errs, fmt.Errorf("sync: batch size %d must be between 1 and 100", c.Sync.BatchSize))
	}
	if c.Security.AuthEnabled && c.Security.JWTPublicKeyPath == "" {
		errs = append(errs, errors.New("security: jwt public key path is required when auth is enabled"))
	}
	if c.Security.VerifyWebhooks && c.Security.WebhookSecret == "" {
		errs = append(errs, errors.New("security: webhook secret is required when signature verification is enabled"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: at least one broker is required"))
	}

	return errors.Join(errs...)
}

// PostgresParams параметры подключения для utils.GenerateConnectionString
func (c *Config) PostgresParams() utils.DBParams {
	return utils.DBParams{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		DBName:   c.Postgres.DBName,
		SSLMode:  c.Postgres.SSLMode,
		PoolSize: c.Postgres.PoolSize,
		Timeout:  c.Postgres.Timeout,
	}
}

// Channel разобранный тип маркетплейса. Validate уже проверил значение
func (c *Config) Channel() pkgmodels.ChannelType {
	ch, _ := pkgmodels.ParseChannelType(c.Marketplace.Channel)
	return ch
}

func (c *Config) IsProduction() bool {
	return c.ENV == "production"
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "gomarket-sync")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.bodyLimit", 2) // 2 МБ

	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("storage.seedPath", "")

	// Настройки Postgres
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "postgres")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)
	v.SetDefault("postgres.minConns", 2)
	v.SetDefault("postgres.maxConnLifetime", "10m")
	v.SetDefault("postgres.maxConnIdleTime", "5m")
	v.SetDefault("postgres.migrateOnStart", true)

	v.SetDefault("cache.driver", CacheDriverRedis)
	v.SetDefault("cache.prefix", "gomarket-sync")

	// Настройки Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)

	// Настройки Kafka
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "gomarket-sync")
	v.SetDefault("kafka.client_id", "gomarket-sync")
	v.SetDefault("kafka.delivery_timeout", "10s")
	v.SetDefault("kafka.create_topics", false)

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "gomarket_sync")
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9100)

	// Настройки безопасности
	v.SetDefault("security.authEnabled", false)
	v.SetDefault("security.jwtIssuer", "gomarket")
	v.SetDefault("security.jwtExpiration", "60m")
	v.SetDefault("security.verifyWebhooks", false)
	v.SetDefault("security.corsAllowOrigins", []string{"*"})

	// Настройки API маркетплейса
	v.SetDefault("marketplace.channel", string(pkgmodels.ChannelShopify))
	v.SetDefault("marketplace.baseURL", "http://localhost:9000")
	v.SetDefault("marketplace.timeout", "10s")
	v.SetDefault("marketplace.requestsPerMinute", 120)
	v.SetDefault("marketplace.maxRetries", 3)
	v.SetDefault("marketplace.retryBackoff", "500ms")

	// Настройки синхронизации
	v.SetDefault("sync.schedule", "@every 15m")
	v.SetDefault("sync.batchSize", 10)
	v.SetDefault("sync.lockTTL", "1m")
	v.SetDefault("sync.stalenessWindow", "24h")
	v.SetDefault("sync.summaryTTL", "30s")
	v.SetDefault("sync.runTimeout", "10m")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	binds := map[string]string{
		// Основные настройки
		"appName":  "APP_NAME",
		"version":  "APP_VERSION",
		"logLevel": "LOG_LEVEL",
		"env":      "APP_ENV",

		// Настройки сервера
		"server.host":            "SERVER_HOST",
		"server.port":            "SERVER_PORT",
		"server.readTimeout":     "SERVER_READ_TIMEOUT",
		"server.writeTimeout":    "SERVER_WRITE_TIMEOUT",
		"server.shutdownTimeout": "SERVER_SHUTDOWN_TIMEOUT",
		"server.bodyLimit":       "SERVER_BODY_LIMIT",

		"storage.driver":   "STORAGE_DRIVER",
		"storage.seedPath": "STORAGE_SEED_PATH",

		// Настройки Postgres
		"postgres.host":            "POSTGRES_HOST",
		"postgres.port":            "POSTGRES_PORT",
		"postgres.user":            "POSTGRES_USER",
		"postgres.password":        "POSTGRES_PASSWORD",
		"postgres.dbname":          "POSTGRES_DBNAME",
		"postgres.sslmode":         "POSTGRES_SSLMODE",
		"postgres.timeout":         "POSTGRES_TIMEOUT",
		"postgres.poolSize":        "POSTGRES_POOL_SIZE",
		"postgres.minConns":        "POSTGRES_MIN_CONNS",
		"postgres.maxConnLifetime": "POSTGRES_MAX_CONN_LIFETIME",
		"postgres.maxConnIdleTime": "POSTGRES_MAX_CONN_IDLE_TIME",
		"postgres.migrateOnStart":  "POSTGRES_MIGRATE_ON_START",

		"cache.driver": "CACHE_DRIVER",
		"cache.prefix": "CACHE_PREFIX",

		// Настройки Redis
		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",
		"redis.poolSize": "REDIS_POOL_SIZE",

		// Настройки Kafka
		"kafka.enabled":          "KAFKA_ENABLED",
		"kafka.brokers":          "KAFKA_BROKERS",
		"kafka.group_id":         "KAFKA_GROUP_ID",
		"kafka.client_id":        "KAFKA_CLIENT_ID",
		"kafka.delivery_timeout": "KAFKA_DELIVERY_TIMEOUT",
		"kafka.create_topics":    "KAFKA_CREATE_TOPICS",

		// Настройки метрик
		"metrics.enabled":   "METRICS_ENABLED",
		"metrics.namespace": "METRICS_NAMESPACE",
		"metrics.endpoint":  "METRICS_ENDPOINT",
		"metrics.port":      "METRICS_PORT",

		// Настройки безопасности
		"security.authEnabled":       "AUTH_ENABLED",
		"security.jwtPublicKeyPath":  "JWT_PUBLIC_KEY_PATH",
		"security.jwtPrivateKeyPath": "JWT_PRIVATE_KEY_PATH",
		"security.jwtIssuer":         "JWT_ISSUER",
		"security.jwtExpiration":     "JWT_EXPIRATION",
		"security.webhookSecret":     "WEBHOOK_SECRET",
		"security.verifyWebhooks":    "WEBHOOK_VERIFY_SIGNATURE",
		"security.corsAllowOrigins":  "CORS_ALLOW_ORIGINS",

		// Настройки API маркетплейса
		"marketplace.channel":           "MARKETPLACE_CHANNEL",
		"marketplace.baseURL":           "MARKETPLACE_BASE_URL",
		"marketplace.token":             "MARKETPLACE_TOKEN",
		"marketplace.timeout":           "MARKETPLACE_TIMEOUT",
		"marketplace.requestsPerMinute": "MARKETPLACE_REQUESTS_PER_MINUTE",
		"marketplace.maxRetries":        "MARKETPLACE_MAX_RETRIES",
		"marketplace.retryBackoff":      "MARKETPLACE_RETRY_BACKOFF",

		// Настройки синхронизации
		"sync.schedule":        "SYNC_SCHEDULE",
		"sync.batchSize":       "SYNC_BATCH_SIZE",
		"sync.lockTTL":         "SYNC_LOCK_TTL",
		"sync.stalenessWindow": "SYNC_STALENESS_WINDOW",
		"sync.summaryTTL":      "SYNC_SUMMARY_TTL",
		"sync.runTimeout":      "SYNC_RUN_TIMEOUT",
	}

	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}
