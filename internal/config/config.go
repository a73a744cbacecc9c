package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Daraja DarajaConfig
	Redis  RedisConfig
	Poller PollerConfig
}

// DarajaConfig carries the mobile-money gateway credentials and endpoints.
type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PollerConfig controls the reconciliation sweep.
type PollerConfig struct {
	RunInterval time.Duration
	// GraceWindow is how long a payment may sit in pending/processing
	// before the poller queries the gateway for it.
	GraceWindow time.Duration
	// TokenGraceWindow bounds payments that never received a correlation
	// token; past it they are failed directly.
	TokenGraceWindow time.Duration
	// HardDeadline is the age past which an unresolved payment is timed out
	// even when the gateway keeps answering "still processing".
	HardDeadline time.Duration
	BatchSize    int
	LockTTL      time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "randa"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "randa"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Daraja: DarajaConfig{
			BaseURL:        getenv("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    strings.TrimSpace(getenv("DARAJA_CONSUMER_KEY", "")),
			ConsumerSecret: strings.TrimSpace(getenv("DARAJA_CONSUMER_SECRET", "")),
			ShortCode:      strings.TrimSpace(getenv("DARAJA_SHORTCODE", "174379")),
			Passkey:        strings.TrimSpace(getenv("DARAJA_PASSKEY", "")),
			CallbackURL:    strings.TrimSpace(getenv("DARAJA_CALLBACK_URL", "")),
			Timeout:        getenvDuration("DARAJA_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Poller: PollerConfig{
			RunInterval:      getenvDuration("POLLER_RUN_INTERVAL", time.Minute),
			GraceWindow:      getenvDuration("POLLER_GRACE_WINDOW", 2*time.Minute),
			TokenGraceWindow: getenvDuration("POLLER_TOKEN_GRACE_WINDOW", 30*time.Second),
			HardDeadline:     getenvDuration("POLLER_HARD_DEADLINE", time.Hour),
			BatchSize:        getenvInt("POLLER_BATCH_SIZE", 50),
			LockTTL:          getenvDuration("POLLER_LOCK_TTL", 45*time.Second),
		},
	}
}

// Module provides Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
