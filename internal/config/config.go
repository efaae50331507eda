package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
const MemoryDatabaseURL = "memory"

// Config holds all configuration for the application
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	MigrationsPath string
	LogLevel       string
	LogFormat      string
	PrometheusPort string
	Port           string
	JWTSecret      string

	OpenAIAPIKey     string
	OpenAIModel      string
	AssistantTimeout time.Duration

	AssistantAllowAnonymous bool
	AssistantHistoryLimit   int
	InviteCodeMaxAttempts   int
}

// Load loads configuration from environment variables, reading .env first
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		Port:           getEnvOrDefault("PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	if cfg.AssistantAllowAnonymous, err = getBoolOrDefault("ASSISTANT_ALLOW_ANONYMOUS", false); err != nil {
		return nil, err
	}
	if cfg.AssistantHistoryLimit, err = getIntOrDefault("ASSISTANT_HISTORY_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.AssistantTimeout, err = getDurationOrDefault("ASSISTANT_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.InviteCodeMaxAttempts, err = getIntOrDefault("INVITE_CODE_MAX_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.InviteCodeMaxAttempts < 1 {
		return nil, fmt.Errorf("INVITE_CODE_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// UsesMemoryStore reports whether DATABASE_URL selects the in-process store.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return b, nil
}
