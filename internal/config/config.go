package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigins []string
	MaxFileSize int64

	// Gemini Configuration
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiTier           string
	LLMTimeout           time.Duration

	// Request deadlines per operation class
	QueryTimeout     time.Duration
	SummarizeTimeout time.Duration
	UploadTimeout    time.Duration

	// Redis Configuration (optional, enables rate limiting)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint     string
	TraceSampleRatio float64

	// Path to the YAML engine tuning file
	EngineConfigFile string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiTier:           getEnv("GEMINI_TIER", "free"),
		LLMTimeout:           getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		QueryTimeout:     getEnvDuration("QUERY_TIMEOUT", 2*time.Minute),
		SummarizeTimeout: getEnvDuration("SUMMARIZE_TIMEOUT", 10*time.Minute),
		UploadTimeout:    getEnvDuration("UPLOAD_TIMEOUT", 10*time.Minute),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),

		EngineConfigFile: getEnv("ENGINE_CONFIG_FILE", "engine.yaml"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
