package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Store     StoreConfig
	Ai        AIConfig
	Assistant AssistantConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string // empty disables the NATS publisher
	OtelEnabled        bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

type AuthConfig struct {
	JwtSecret string // empty disables authentication
}

type StoreConfig struct {
	Backend         string // "memory" or "redis"
	RedisURL        string
	CleanupInterval time.Duration
}

type AIConfig struct {
	LLMProvider     string // "ollama" or "huggingface"
	BaseURL         string
	APIKey          string
	ClassifierModel string
	ExecutorModel   string
	TrafficLogPath  string // prompts and replies; empty disables
}

type AssistantConfig struct {
	ThresholdInformational float64
	ThresholdLocate        float64
	ThresholdTargeted      float64
	ThresholdFullRewrite   float64
	MaxEdits               int

	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerHalfOpenMaxCalls int

	CacheTTL     time.Duration
	LockTTL      time.Duration
	LockWait     time.Duration
	SessionTTL   time.Duration
	PendingTTL   time.Duration
	PatternsPath string

	ClassifierTimeout time.Duration
	ExecutorTimeout   time.Duration
	PipelineTimeout   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
			CleanupInterval: getEnvAsDuration("STORE_CLEANUP_INTERVAL", time.Minute),
		},
		Ai: AIConfig{
			LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
			BaseURL:         getEnv("LLM_BASE_URL", "http://localhost:11434"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			ClassifierModel: getEnv("CLASSIFIER_MODEL", "qwen2.5:3b"),
			ExecutorModel:   getEnv("EXECUTOR_MODEL", "qwen2.5:7b"),
			TrafficLogPath:  getEnv("LLM_TRAFFIC_LOG_PATH", ""),
		},
		Assistant: AssistantConfig{
			ThresholdInformational: getEnvAsFloat("THRESHOLD_INFORMATIONAL", 0.60),
			ThresholdLocate:        getEnvAsFloat("THRESHOLD_LOCATE", 0.70),
			ThresholdTargeted:      getEnvAsFloat("THRESHOLD_TARGETED_UPDATE", 0.80),
			ThresholdFullRewrite:   getEnvAsFloat("THRESHOLD_FULL_REWRITE", 0.85),
			MaxEdits:               getEnvAsInt("MAX_EDITS", 20),

			BreakerFailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
			BreakerRecoveryTimeout:  getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
			BreakerHalfOpenMaxCalls: getEnvAsInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),

			CacheTTL:     getEnvAsDuration("CACHE_TTL", 10*time.Minute),
			LockTTL:      getEnvAsDuration("CACHE_LOCK_TTL", 30*time.Second),
			LockWait:     getEnvAsDuration("CACHE_LOCK_WAIT", 500*time.Millisecond),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", time.Hour),
			PendingTTL:   getEnvAsDuration("PENDING_TTL", 5*time.Minute),
			PatternsPath: getEnv("FASTPATH_PATTERNS_PATH", ""),

			ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
			ExecutorTimeout:   getEnvAsDuration("EXECUTOR_TIMEOUT", 20*time.Second),
			PipelineTimeout:   getEnvAsDuration("PIPELINE_TIMEOUT", 30*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("750ms") or plain seconds ("60")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
