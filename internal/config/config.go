package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	JWT       JWTConfig       `env:",prefix=JWT_"`
	Strava    StravaConfig    `env:",prefix=STRAVA_"`
	Sync      SyncConfig      `env:",prefix=SYNC_"`
	Scheduler SchedulerConfig `env:",prefix=SCHEDULER_"`
	Notify    NotifyConfig    `env:",prefix=NOTIFY_"`
	Security  SecurityConfig  `env:",prefix="`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	Env       string          `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host          string `env:"HOST,default=localhost"`
	Port          string `env:"PORT,default=5432"`
	User          string `env:"USER,default=sync_service"`
	Password      string `env:"PASSWORD,default=sync_service_password"`
	DBName        string `env:"DB,default=sync_service_db"`
	SSLMode       string `env:"SSLMODE,default=disable"`
	MigrationsDir string `env:"MIGRATIONS_DIR,default="`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret            string   `env:"SECRET,required"`
	AccessTokenExpiry Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
}

// StravaConfig configures the remote activity client.
type StravaConfig struct {
	ClientID     string   `env:"CLIENT_ID,required"`
	ClientSecret string   `env:"CLIENT_SECRET,required"`
	RedirectURI  string   `env:"REDIRECT_URI,default=http://localhost:8080/api/v1/auth/strava/callback"`
	BaseURL      string   `env:"BASE_URL,default=https://www.strava.com/api/v3"`
	TokenURL     string   `env:"TOKEN_URL,default=https://www.strava.com/oauth/token"`
	AuthURL      string   `env:"AUTH_URL,default=https://www.strava.com/oauth/authorize"`
	HTTPTimeout  Duration `env:"HTTP_TIMEOUT,default=30s"`
}

// SyncConfig tunes the batch orchestrator.
type SyncConfig struct {
	BatchSize      int      `env:"BATCH_SIZE,default=10"`
	BatchDelay     Duration `env:"BATCH_DELAY,default=5s"`
	Lookback       Duration `env:"LOOKBACK,default=7d"`
	PageSize       int      `env:"PAGE_SIZE,default=100"`
	LogRetention   Duration `env:"LOG_RETENTION,default=30d"`
	RunRetention   Duration `env:"RUN_RETENTION,default=90d"`
	NotifyWindow   Duration `env:"NOTIFY_WINDOW,default=24h"`
	RunLockTTL     Duration `env:"RUN_LOCK_TTL,default=1h"`
	MatchThreshold float64  `env:"MATCH_THRESHOLD,default=0.6"`
}

// SchedulerConfig holds the trigger expressions for the recurring jobs.
type SchedulerConfig struct {
	Timezone          string `env:"TIMEZONE,default=UTC"`
	ActivitySyncSpec  string `env:"ACTIVITY_SYNC_SPEC,default=0 6 * * *"`
	CleanupSpec       string `env:"CLEANUP_SPEC,default=0 0 * * 0"`
	NotificationsSpec string `env:"NOTIFICATIONS_SPEC,default=0 8 * * *"`
	AutoStart         bool   `env:"AUTO_START,default=false"`
}

type NotifyConfig struct {
	WebhookURL string   `env:"WEBHOOK_URL,default="`
	Timeout    Duration `env:"TIMEOUT,default=10s"`
}

type SecurityConfig struct {
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=30"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Location resolves the scheduler time zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if config.Sync.BatchSize < 1 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be at least 1")
	}

	if _, err := config.Scheduler.Location(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
