package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UsageModeSync  = "sync"
	UsageModeAsync = "async"
)

type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	JWTSecret string
	TokenTTL  time.Duration

	OpenAIAPIKey     string
	OpenAITextModel  string
	OpenAIImageModel string
	GeminiAPIKey     string
	GeminiModel      string

	UsageLogMode         string
	RateLimitPerMinute   int
	MaxBodyBytes         int64
	ExposeProviderErrors bool

	// EnvFileLoaded reports whether a .env file was found, so main can log it
	// once the logger exists.
	EnvFileLoaded bool
}

// LoadConfig reads a .env file if one exists and then the process environment.
func LoadConfig() (*Config, error) {
	envErr := godotenv.Load()

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "xferlogic.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAITextModel:  getEnv("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),

		UsageLogMode:         strings.ToLower(getEnv("USAGE_LOG_MODE", UsageModeSync)),
		RateLimitPerMinute:   getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		MaxBodyBytes:         int64(getEnvAsInt("MAX_BODY_BYTES", 20<<20)),
		ExposeProviderErrors: getEnvAsBool("EXPOSE_PROVIDER_ERRORS", true),

		EnvFileLoaded: envErr == nil,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.UsageLogMode != UsageModeSync && cfg.UsageLogMode != UsageModeAsync {
		return nil, fmt.Errorf("USAGE_LOG_MODE must be %q or %q, got %q", UsageModeSync, UsageModeAsync, cfg.UsageLogMode)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// UsesPostgres reports whether DatabaseURL points at a Postgres server rather
// than a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
