package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MARKETPAY_DB_DSN"
	EnvDBHost = "MARKETPAY_DB_HOST"
	EnvDBUser = "MARKETPAY_DB_USER"
	EnvDBName = "MARKETPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Razorpay     RazorpayConfig
	FX           FXConfig
	Escrow       EscrowConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"MARKETPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPAY_DB_DSN"`
	Driver string `envconfig:"MARKETPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPAY_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETPAY_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPAY_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"MARKETPAY_STRIPE_API_KEY"`
	Secret string `envconfig:"MARKETPAY_STRIPE_SECRET"`
	Env    string `envconfig:"MARKETPAY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"MARKETPAY_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"MARKETPAY_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"MARKETPAY_RAZORPAY_WEBHOOK_SECRET"`
	AccountNumber string        `envconfig:"MARKETPAY_RAZORPAY_ACCOUNT_NUMBER"`
	BaseURL       string        `envconfig:"MARKETPAY_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"MARKETPAY_RAZORPAY_TIMEOUT" default:"10s"`
}

type FXConfig struct {
	ProviderURL  string        `envconfig:"MARKETPAY_FX_PROVIDER_URL" default:"https://api.exchangerate.host/latest"`
	ProviderName string        `envconfig:"MARKETPAY_FX_PROVIDER_NAME" default:"exchangerate-host"`
	APIKey       string        `envconfig:"MARKETPAY_FX_API_KEY"`
	CacheTTL     time.Duration `envconfig:"MARKETPAY_FX_CACHE_TTL" default:"12h"`
	Timeout      time.Duration `envconfig:"MARKETPAY_FX_TIMEOUT" default:"10s"`
}

type EscrowConfig struct {
	AutoReleaseDays int           `envconfig:"MARKETPAY_ESCROW_AUTO_RELEASE_DAYS" default:"7"`
	CommissionBps   int64         `envconfig:"MARKETPAY_ESCROW_COMMISSION_BPS" default:"250"`
	SweepInterval   time.Duration `envconfig:"MARKETPAY_ESCROW_SWEEP_INTERVAL" default:"1h"`
	EventRetention  time.Duration `envconfig:"MARKETPAY_WEBHOOK_EVENT_RETENTION" default:"2160h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MARKETPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"MARKETPAY_PUBSUB_PAYMENTS_TOPIC" default:"mp-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
