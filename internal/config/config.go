package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. It is loaded once at process
// start and never mutated afterwards.
type Config struct {
	AppEnv string
	Port   string

	// Postgres
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	// Redis (optional, in-memory cache is used when unset)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Upstream source
	SourceBaseURL  string
	SourceAPIURL   string
	SourceImageURL string
	SourceAdapter  string
	SourceBrand    string

	// Fetcher
	MaxRetries    int
	RetryDelay    time.Duration
	FetchTimeout  time.Duration
	DetailWorkers int

	// Scheduler
	CheckInterval time.Duration
	WorkHoursOnly bool

	// API
	IngestJWTSecret string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: getEnv("PG_PASSWORD", ""),
		PGDatabase: getEnv("PG_DB", "okasion"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SourceBaseURL:  getEnv("SOURCE_BASE_URL", "https://kiaokasion.net/kia/"),
		SourceAPIURL:   getEnv("SOURCE_API_URL", "https://kiaokasion.net/kia/async/metodos.aspx"),
		SourceImageURL: getEnv("SOURCE_IMAGE_URL", "https://kiaokasion.net/kia/imagenes/"),
		SourceAdapter:  getEnv("SOURCE_ADAPTER", "api"),
		SourceBrand:    getEnv("SOURCE_BRAND", "KIA"),

		MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		RetryDelay:    time.Duration(getEnvInt("RETRY_DELAY", 5)) * time.Second,
		FetchTimeout:  time.Duration(getEnvInt("FETCH_TIMEOUT", 30)) * time.Second,
		DetailWorkers: getEnvInt("DETAIL_WORKERS", 1),

		CheckInterval: time.Duration(getEnvInt("CHECK_INTERVAL", 3600)) * time.Second,
		WorkHoursOnly: getEnvBool("WORK_HOURS_ONLY", false),

		IngestJWTSecret: getEnv("INGEST_JWT_SECRET", ""),
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be >= 1, got %d", cfg.MaxRetries)
	}
	if cfg.DetailWorkers < 1 || cfg.DetailWorkers > 5 {
		return nil, fmt.Errorf("DETAIL_WORKERS must be between 1 and 5, got %d", cfg.DetailWorkers)
	}

	return cfg, nil
}

// PostgresDSN builds the connection string shared by sqlx and GORM.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// RedisEnabled reports whether a Redis cache should be used instead of the
// in-memory one.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
