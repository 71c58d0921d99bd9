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
	Gateway      GatewayConfig
	Sync         SyncConfig
	Cache        CacheConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MKULIMA_APP_ENV" required:"true"`
	Port         string `envconfig:"MKULIMA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MKULIMA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MKULIMA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MKULIMA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MKULIMA_DB_DSN"`
	Driver string `envconfig:"MKULIMA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MKULIMA_DB_HOST"`
	LegacyPort     int    `envconfig:"MKULIMA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MKULIMA_DB_USER"`
	LegacyPassword string `envconfig:"MKULIMA_DB_PASSWORD"`
	LegacyName     string `envconfig:"MKULIMA_DB_NAME"`
	LegacySSLMode  string `envconfig:"MKULIMA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MKULIMA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MKULIMA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MKULIMA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MKULIMA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MKULIMA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MKULIMA_REDIS_ADDR"`
	Password     string        `envconfig:"MKULIMA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MKULIMA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MKULIMA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MKULIMA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MKULIMA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MKULIMA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MKULIMA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig configures the mobile-money provider integration.
type GatewayConfig struct {
	BaseURL  string `envconfig:"MKULIMA_GATEWAY_BASE_URL" required:"true"`
	APIKey   string `envconfig:"MKULIMA_GATEWAY_API_KEY" required:"true"`
	Secret   string `envconfig:"MKULIMA_GATEWAY_SECRET" required:"true"`
	ClientID string `envconfig:"MKULIMA_GATEWAY_CLIENT_ID" required:"true"`

	Timeout      time.Duration `envconfig:"MKULIMA_GATEWAY_TIMEOUT" default:"30s"`
	MaxRetries   int           `envconfig:"MKULIMA_GATEWAY_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"MKULIMA_GATEWAY_RETRY_BACKOFF" default:"500ms"`

	CountryCode string `envconfig:"MKULIMA_GATEWAY_COUNTRY_CODE" default:"255"`
	TrunkPrefix string `envconfig:"MKULIMA_GATEWAY_TRUNK_PREFIX" default:"0"`
	LocalDigits int    `envconfig:"MKULIMA_GATEWAY_LOCAL_DIGITS" default:"9"`
}

// SyncConfig configures the on-device sync agent.
type SyncConfig struct {
	APIBaseURL     string        `envconfig:"MKULIMA_SYNC_API_BASE_URL"`
	APIToken       string        `envconfig:"MKULIMA_SYNC_API_TOKEN"`
	QueuePath      string        `envconfig:"MKULIMA_SYNC_QUEUE_PATH" default:"mkulima-queue.db"`
	RequestTimeout time.Duration `envconfig:"MKULIMA_SYNC_REQUEST_TIMEOUT" default:"15s"`
	ProbeInterval  time.Duration `envconfig:"MKULIMA_SYNC_PROBE_INTERVAL" default:"10s"`
}

type CacheConfig struct {
	ProductTTL        time.Duration `envconfig:"MKULIMA_CACHE_PRODUCT_TTL" default:"5m"`
	PriceTTL          time.Duration `envconfig:"MKULIMA_CACHE_PRICE_TTL" default:"10m"`
	CallbackDedupeTTL time.Duration `envconfig:"MKULIMA_CACHE_CALLBACK_DEDUPE_TTL" default:"720h"`
	IdempotencyTTL    time.Duration `envconfig:"MKULIMA_CACHE_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MKULIMA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MKULIMA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%s is required when driver is sqlite", EnvDBDSN)
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
