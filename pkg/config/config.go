package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RatesAPI  RatesAPIConfig
	Sync      SyncConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RatesAPIConfig holds upstream exchange-rate provider configuration
type RatesAPIConfig struct {
	BaseURL                 string
	AccessKey               string
	AnchorCurrency          string
	TimeoutSeconds          int
	BreakerIntervalSeconds  int
	BreakerTimeoutSeconds   int
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
}

// SyncConfig holds rate synchronization configuration
type SyncConfig struct {
	Schedule         string // cron expression, evaluated in UTC
	RunOnStartup     bool
	LockName         string
	LockLeaseSeconds int
	StaleAfterHours  int
	PersistLiveRates bool
}

// SecurityConfig holds request authentication configuration
type SecurityConfig struct {
	APIKey string
}

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	DefaultLimit  int
	DefaultBurst  int
	RedisPrefix   string
}

// Window returns the rate limit window as a duration
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "currencyconverter"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RatesAPI: RatesAPIConfig{
			BaseURL:                 getEnv("RATES_API_URL", "https://api.exchangeratesapi.io/v1"),
			AccessKey:               getEnv("RATES_API_KEY", ""),
			AnchorCurrency:          getEnv("RATES_API_ANCHOR_CURRENCY", "EUR"),
			TimeoutSeconds:          getEnvAsInt("RATES_API_TIMEOUT", 10),
			BreakerIntervalSeconds:  getEnvAsInt("RATES_API_BREAKER_INTERVAL_SECONDS", 60),
			BreakerTimeoutSeconds:   getEnvAsInt("RATES_API_BREAKER_TIMEOUT_SECONDS", 30),
			BreakerFailureThreshold: getEnvAsInt("RATES_API_BREAKER_FAILURE_THRESHOLD", 5),
			BreakerSuccessThreshold: getEnvAsInt("RATES_API_BREAKER_SUCCESS_THRESHOLD", 1),
		},
		Sync: SyncConfig{
			Schedule:         getEnv("SYNC_SCHEDULE", "0 0 * * *"),
			RunOnStartup:     getEnvAsBool("SYNC_RUN_ON_STARTUP", true),
			LockName:         getEnv("SYNC_LOCK_NAME", "fetch-rates-lock"),
			LockLeaseSeconds: getEnvAsInt("SYNC_LOCK_LEASE_SECONDS", 10),
			StaleAfterHours:  getEnvAsInt("SYNC_STALE_AFTER_HOURS", 24),
			PersistLiveRates: getEnvAsBool("SYNC_PERSIST_LIVE_RATES", true),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:  getEnvAsInt("RATE_LIMIT_DEFAULT", 100),
			DefaultBurst:  getEnvAsInt("RATE_LIMIT_BURST", 10),
			RedisPrefix:   getEnv("RATE_LIMIT_PREFIX", "rl"),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
