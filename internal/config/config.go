package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the insecure development signing key used when AUTH_JWT_SECRET is unset.
const DefaultJWTSecret = "dev-secret"

// Rate limiter backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	StatusExpiry StatusExpiryConfig
	Notification NotificationConfig
	Bootstrap    BootstrapConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
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
	Level   string
	Format  string
	Service string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	TokenTTLHours          int
	BcryptCost             int
	MinPasswordLength      int
	UpgradeLegacyPasswords bool
}

// RateLimitConfig bounds login attempts per origin and identity.
type RateLimitConfig struct {
	Backend       string
	MaxAttempts   int
	WindowSeconds int
}

// StatusExpiryConfig drives the background sweep of stale referrals.
type StatusExpiryConfig struct {
	Enabled             bool
	IntervalSeconds     int
	StartupDelaySeconds int
	MaxAgeMonths        int
}

// BootstrapConfig seeds the first administrator so a fresh store can be logged into.
// The password is supplied as a bcrypt digest, never in clear text.
type BootstrapConfig struct {
	AdminName         string
	AdminEmail        string
	AdminPasswordHash string
}

// Enabled reports whether an administrator should be seeded at startup.
func (b BootstrapConfig) Enabled() bool {
	return strings.TrimSpace(b.AdminEmail) != ""
}

// NotificationConfig holds the partner webhook that receives referral events.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "referral-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", DefaultJWTSecret),
			TokenTTLHours:          getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 24*7),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 10),
			MinPasswordLength:      getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 6),
			UpgradeLegacyPasswords: getEnvAsBool("AUTH_UPGRADE_LEGACY_PASSWORDS", true),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("LOGIN_RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
			MaxAttempts:   getEnvAsInt("LOGIN_RATE_LIMIT_MAX", 5),
			WindowSeconds: getEnvAsInt("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 300),
		},
		StatusExpiry: StatusExpiryConfig{
			Enabled:             getEnvAsBool("STATUS_EXPIRY_ENABLED", true),
			IntervalSeconds:     getEnvAsInt("STATUS_EXPIRY_INTERVAL_SECONDS", 3600),
			StartupDelaySeconds: getEnvAsInt("STATUS_EXPIRY_STARTUP_DELAY_SECONDS", 5),
			MaxAgeMonths:        getEnvAsInt("STATUS_EXPIRY_MAX_AGE_MONTHS", 3),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Bootstrap: BootstrapConfig{
			AdminName:         getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
			AdminEmail:        os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPasswordHash: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD_HASH"),
		},
	}

	cfg.Logger.Service = cfg.App.Name

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("invalid LOGIN_RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.Logger.Format)
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_MAX must be positive")
	}
	if c.Bootstrap.Enabled() && !strings.HasPrefix(c.Bootstrap.AdminPasswordHash, "$2") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD_HASH must be a bcrypt digest when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if c.StatusExpiry.MaxAgeMonths <= 0 {
		return fmt.Errorf("STATUS_EXPIRY_MAX_AGE_MONTHS must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults allowed.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "" || a.Env == "development" || a.Env == "dev" || a.Env == "test"
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

// UsesDefaultSecret reports whether tokens are signed with the documented insecure key.
func (a AuthConfig) UsesDefaultSecret() bool {
	return a.JWTSecret == DefaultJWTSecret
}

// TokenTTL returns the session lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Window returns the sliding window duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Interval returns the time between sweeps.
func (s StatusExpiryConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// StartupDelay returns the delay before the first sweep after boot.
func (s StatusExpiryConfig) StartupDelay() time.Duration {
	if s.StartupDelaySeconds < 0 {
		return 0
	}
	return time.Duration(s.StartupDelaySeconds) * time.Second
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
