package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures runtime configuration for the storefront API.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Session     SessionConfig     `mapstructure:"session"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Service     ServiceConfig     `mapstructure:"service"`
}

type HTTPConfig struct {
	Port           int     `mapstructure:"port"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	ShutdownGrace  int     `mapstructure:"shutdown_grace"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IdempotencyConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type PaymentConfig struct {
	KeyID      string        `mapstructure:"key_id"`
	KeySecret  string        `mapstructure:"key_secret"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Currency   string        `mapstructure:"currency"`
}

type SessionConfig struct {
	CustomerSecret string        `mapstructure:"customer_secret"`
	AdminSecret    string        `mapstructure:"admin_secret"`
	TTL            time.Duration `mapstructure:"ttl"`
}

type AlertingConfig struct {
	SentryDSN string `mapstructure:"sentry_dsn"`
}

type TelemetryConfig struct {
	LogLevel      string  `mapstructure:"log_level"`
	OTelEndpoint  string  `mapstructure:"otel_endpoint"`
	OTelInsecure  bool    `mapstructure:"otel_insecure"`
	EnableTracing bool    `mapstructure:"enable_tracing"`
	EnableMetrics bool    `mapstructure:"enable_metrics"`
	SampleRate    float64 `mapstructure:"sample_rate"`

	// MetricInterval is how often metrics are pushed to the collector.
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

var (
	ErrMissingPaymentSecret = errors.New("PAYMENT_KEY_SECRET is required")
	ErrMissingPaymentKeyID  = errors.New("PAYMENT_KEY_ID is required")
	ErrMissingSessionSecret = errors.New("SESSION_CUSTOMER_SECRET and SESSION_ADMIN_SECRET are required")
	ErrUnknownIdempotency   = errors.New("IDEMPOTENCY_BACKEND must be one of postgres, redis, memory")
)

// binding ties a config key to its environment variable and default.
type binding struct {
	key        string
	env        string
	defaultVal any
}

var bindings = []binding{
	{"http.port", "API_HTTP_PORT", 8080},
	{"http.metrics_path", "API_METRICS_PATH", "/metrics"},
	{"http.shutdown_grace", "API_SHUTDOWN_GRACE_SECONDS", 15},
	{"http.rate_limit_rps", "RATE_LIMIT_RPS", 5.0},
	{"http.rate_limit_burst", "RATE_LIMIT_BURST", 10},

	{"database.url", "DATABASE_URL", ""},
	{"database.auto_migrate", "AUTO_MIGRATE", true},
	{"database.migrations_path", "MIGRATIONS_PATH", "migrations"},

	{"kafka.brokers", "KAFKA_BROKERS", ""},

	{"redis.addr", "REDIS_ADDR", "localhost:6379"},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"idempotency.backend", "IDEMPOTENCY_BACKEND", "postgres"},
	{"idempotency.ttl", "IDEMPOTENCY_TTL", "24h"},

	{"payment.key_id", "PAYMENT_KEY_ID", ""},
	{"payment.key_secret", "PAYMENT_KEY_SECRET", ""},
	{"payment.api_base_url", "PAYMENT_API_BASE_URL", "https://api.razorpay.com"},
	{"payment.timeout", "PAYMENT_TIMEOUT", "10s"},
	{"payment.currency", "PAYMENT_CURRENCY", "INR"},

	{"session.customer_secret", "SESSION_CUSTOMER_SECRET", ""},
	{"session.admin_secret", "SESSION_ADMIN_SECRET", ""},
	{"session.ttl", "SESSION_TTL", "168h"},

	{"alerting.sentry_dsn", "SENTRY_DSN", ""},

	{"telemetry.log_level", "LOG_LEVEL", "info"},
	{"telemetry.otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", ""},
	{"telemetry.otel_insecure", "OTEL_EXPORTER_OTLP_INSECURE", true},
	{"telemetry.enable_tracing", "OTEL_ENABLE_TRACING", true},
	{"telemetry.enable_metrics", "OTEL_ENABLE_METRICS", true},
	{"telemetry.sample_rate", "OTEL_SAMPLE_RATE", 1.0},
	{"telemetry.metric_interval", "OTEL_METRIC_INTERVAL", "15s"},

	{"service.name", "API_SERVICE_NAME", "storefront-api"},
	{"service.version", "SERVICE_VERSION", "0.1.0"},
	{"service.environment", "ENVIRONMENT", "development"},
}

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
		v.SetDefault(b.key, b.defaultVal)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildDatabaseURL(v)
	}
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)
	cfg.Idempotency.Backend = strings.ToLower(strings.TrimSpace(cfg.Idempotency.Backend))
	cfg.Payment.APIBaseURL = strings.TrimRight(cfg.Payment.APIBaseURL, "/")
	cfg.Payment.Currency = strings.ToUpper(cfg.Payment.Currency)

	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Payment.KeyID == "" {
		errs = append(errs, ErrMissingPaymentKeyID)
	}
	if c.Payment.KeySecret == "" {
		errs = append(errs, ErrMissingPaymentSecret)
	}
	if c.Session.CustomerSecret == "" || c.Session.AdminSecret == "" {
		errs = append(errs, ErrMissingSessionSecret)
	}
	switch c.Idempotency.Backend {
	case "postgres", "redis", "memory":
	default:
		errs = append(errs, ErrUnknownIdempotency)
	}
	return errors.Join(errs...)
}

func buildDatabaseURL(v *viper.Viper) string {
	get := func(env, def string) string {
		_ = v.BindEnv(env, env)
		if value := v.GetString(env); value != "" {
			return value
		}
		return def
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		get("DB_USER", "postgres"),
		get("DB_PASSWORD", "postgres"),
		get("DB_HOST", "localhost"),
		get("DB_PORT", "5432"),
		get("DB_NAME", "storefront"),
		get("DB_SSLMODE", "disable"),
		get("DB_MAX_CONNS", "25"),
		get("DB_MIN_CONNS", "5"),
		get("DB_MAX_CONN_LIFETIME", "5m"),
	)
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
