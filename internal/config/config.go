package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devJWTSecret  = "dev-secret"
	devCSRFSecret = "dev-csrf-secret"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	CSRF      CSRFConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Events    EventsConfig
	Payments  PaymentsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// ProxyHeader names the header carrying the client IP behind a proxy.
	ProxyHeader string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// EntitlementTimeout bounds the subscription lookup.
	EntitlementTimeout time.Duration
}

// CSRFConfig configures the double-submit guard.
type CSRFConfig struct {
	Secret       string
	SecureCookie bool
	CookieMaxAge time.Duration
}

// TierConfig is the budget of one rate-limit tier.
type TierConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig collects every tier.
type RateLimitConfig struct {
	General       TierConfig
	Auth          TierConfig
	Payment       TierConfig
	Upload        TierConfig
	Mutation      TierConfig
	Elevated      TierConfig
	SweepInterval time.Duration
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Backend        string // "memory" or "redis"
	DefaultTTL     time.Duration
	MaxEntries     int
	SweepInterval  time.Duration
	BackendTimeout time.Duration
	KeyPrefix      string
}

// EventsConfig sizes the security-event buffer.
type EventsConfig struct {
	BufferSize int
}

// PaymentsConfig holds the shared secret used to verify provider webhooks.
type PaymentsConfig struct {
	WebhookSecret string
	// ExpirySchedule is the cron expression for the job that marks lapsed
	// subscriptions expired. Empty disables it.
	ExpirySchedule string
}

// DefaultRateLimitConfig returns the production tier budgets.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		General:       TierConfig{Limit: 100, Window: 15 * time.Minute},
		Auth:          TierConfig{Limit: 5, Window: 15 * time.Minute},
		Payment:       TierConfig{Limit: 10, Window: 15 * time.Minute},
		Upload:        TierConfig{Limit: 10, Window: time.Hour},
		Mutation:      TierConfig{Limit: 30, Window: 15 * time.Minute},
		Elevated:      TierConfig{Limit: 1000, Window: 15 * time.Minute},
		SweepInterval: time.Minute,
	}
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	env := getEnv("APP_ENV", "development")
	jwtSecret := getEnv("AUTH_JWT_SECRET", devJWTSecret)
	rl := DefaultRateLimitConfig()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "learning-api"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           os.Getenv("HTTP_PROXY_HEADER"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: env != "production",
		},
		Auth: AuthConfig{
			JWTSecret:             jwtSecret,
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			EntitlementTimeout:    getEnvAsDuration("AUTH_ENTITLEMENT_TIMEOUT", 2*time.Second),
		},
		CSRF: CSRFConfig{
			Secret:       getEnv("CSRF_SECRET", getEnv("AUTH_JWT_SECRET", devCSRFSecret)),
			SecureCookie: getEnvAsBool("CSRF_SECURE_COOKIE", env == "production"),
			CookieMaxAge: getEnvAsDuration("CSRF_COOKIE_MAX_AGE", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			General:       tierFromEnv("GENERAL", rl.General),
			Auth:          tierFromEnv("AUTH", rl.Auth),
			Payment:       tierFromEnv("PAYMENT", rl.Payment),
			Upload:        tierFromEnv("UPLOAD", rl.Upload),
			Mutation:      tierFromEnv("MUTATION", rl.Mutation),
			Elevated:      tierFromEnv("ELEVATED", rl.Elevated),
			SweepInterval: getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", rl.SweepInterval),
		},
		Cache: CacheConfig{
			Backend:        strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
			DefaultTTL:     getEnvAsDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			MaxEntries:     getEnvAsInt("CACHE_MAX_ENTRIES", 10000),
			SweepInterval:  getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Minute),
			BackendTimeout: getEnvAsDuration("CACHE_BACKEND_TIMEOUT", 200*time.Millisecond),
			KeyPrefix:      getEnv("CACHE_KEY_PREFIX", "resp:"),
		},
		Events: EventsConfig{
			BufferSize: getEnvAsInt("SECURITY_EVENT_BUFFER", 1024),
		},
		Payments: PaymentsConfig{
			WebhookSecret:  os.Getenv("PAYMENTS_WEBHOOK_SECRET"),
			ExpirySchedule: getEnv("SUBSCRIPTION_EXPIRY_SCHEDULE", "@every 10m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that must not reach a running server.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Env == "production" {
		if c.Auth.JWTSecret == devJWTSecret {
			errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
		}
		if c.CSRF.Secret == devCSRFSecret || c.CSRF.Secret == c.Auth.JWTSecret {
			errs = append(errs, errors.New("CSRF_SECRET must be set and differ from AUTH_JWT_SECRET in production"))
		}
		if c.Payments.WebhookSecret == "" {
			errs = append(errs, errors.New("PAYMENTS_WEBHOOK_SECRET must be set in production"))
		}
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q: want memory or redis", c.Cache.Backend))
	}
	for name, tier := range map[string]TierConfig{
		"GENERAL":  c.RateLimit.General,
		"AUTH":     c.RateLimit.Auth,
		"PAYMENT":  c.RateLimit.Payment,
		"UPLOAD":   c.RateLimit.Upload,
		"MUTATION": c.RateLimit.Mutation,
		"ELEVATED": c.RateLimit.Elevated,
	} {
		if tier.Limit < 1 || tier.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_%s: limit and window must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func tierFromEnv(name string, fallback TierConfig) TierConfig {
	return TierConfig{
		Limit:  getEnvAsInt("RATE_LIMIT_"+name+"_MAX", fallback.Limit),
		Window: getEnvAsDuration("RATE_LIMIT_"+name+"_WINDOW", fallback.Window),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
