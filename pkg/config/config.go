package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Receipt      ReceiptConfig
	APIKey       APIKeyConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("one of %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	// MetricsAddr exposes /metrics on the background workers; empty disables it.
	MetricsAddr  string `envconfig:"POS_METRICS_ADDR"`

	CORSAllowedOrigins []string `envconfig:"POS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"api"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"POS_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
	ReceiptPrinter bool `envconfig:"POS_FEATURE_RECEIPT_PRINTER" default:"true"`
}

// PricingConfig carries the rounding modes and tax brackets used by the pricing engine.
type PricingConfig struct {
	DiscountRounding string `envconfig:"POS_PRICING_DISCOUNT_ROUNDING" default:"half_up"`
	TaxRounding      string `envconfig:"POS_PRICING_TAX_ROUNDING" default:"half_down"`
	TaxPlaces        int32  `envconfig:"POS_PRICING_TAX_PLACES" default:"2"`
	TaxBrackets      []int  `envconfig:"POS_PRICING_TAX_BRACKETS" default:"10,8"`
}

func (p PricingConfig) validate() error {
	if len(p.TaxBrackets) == 0 {
		return fmt.Errorf("%s must list at least one tax bracket", "POS_PRICING_TAX_BRACKETS")
	}
	for _, rate := range p.TaxBrackets {
		if rate <= 0 {
			return fmt.Errorf("tax bracket %d must be positive", rate)
		}
	}
	if p.TaxPlaces < 0 {
		return fmt.Errorf("tax places must not be negative")
	}
	return nil
}

type ReceiptConfig struct {
	PrinterURL string        `envconfig:"POS_RECEIPT_PRINTER_URL"`
	Timeout    time.Duration `envconfig:"POS_RECEIPT_TIMEOUT" default:"5s"`
	ShopName   string        `envconfig:"POS_RECEIPT_SHOP_NAME" default:"POS"`
	Width      int           `envconfig:"POS_RECEIPT_WIDTH" default:"32"`
}

// APIKeyConfig controls the X-API-KEY authentication and argon2id hashing of stored keys.
type APIKeyConfig struct {
	Header           string        `envconfig:"POS_API_KEY_HEADER" default:"X-API-KEY"`
	ArgonMemoryKB    int           `envconfig:"POS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int           `envconfig:"POS_ARGON_TIME" default:"3"`
	ArgonParallelism int           `envconfig:"POS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int           `envconfig:"POS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"POS_ARGON_KEY_LEN" default:"32"`
	CacheTTL         time.Duration `envconfig:"POS_API_KEY_CACHE_TTL" default:"5m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"POS_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles authenticated traffic per client IP and per API key.
type RateLimitConfig struct {
	Window   time.Duration `envconfig:"POS_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit  int           `envconfig:"POS_RATE_LIMIT_IP" default:"600"`
	KeyLimit int           `envconfig:"POS_RATE_LIMIT_KEY" default:"300"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SalesTopic       string `envconfig:"POS_PUBSUB_SALES_TOPIC" default:"pos-sales-events"`
	MaintenanceTopic string `envconfig:"POS_PUBSUB_MAINTENANCE_TOPIC" default:"pos-maintenance-events"`
	CreateTopics     bool   `envconfig:"POS_PUBSUB_CREATE_TOPICS" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"POS_CRON_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"POS_CRON_LOCK_TTL" default:"10m"`
	OutboxRetention time.Duration `envconfig:"POS_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == DriverSQLite {
		db.DSN = "file:pos?mode=memory&cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
