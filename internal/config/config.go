// Package config loads harvester configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Source API
	BaseURL        string
	Endpoint       string
	PageSize       int
	MaxWorkers     int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	CategoryPause  time.Duration

	// Extraction planning
	BackfillStart  string // YYYY-MM-DD, first date of the historical range
	ProductionMode bool

	// Storage
	S3Bucket         string
	LocalDataDir     string
	DatasetName      string
	StateKey         string
	StateLocalPath   string
	ConsolidationAge int // days before a daily partition is eligible for merge

	// Stage 1 keyword filter
	FilterEnabled bool
	GroupsFile    string

	// Stage 2 semantic oracle
	OracleEnabled   bool
	OracleProvider  string
	OracleModel     string
	OracleMaxTokens int
	OracleTemp      float64
	OracleMaxPerMin int
	OracleDelay     time.Duration
	OracleCacheTTL  time.Duration
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Oracle provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Load reads configuration from environment variables.
// Defaults follow the PNCP consulta API limits.
func Load() Config {
	return Config{
		BaseURL:        getEnv("PNCP_BASE_URL", "https://pncp.gov.br/api/consulta/v1"),
		Endpoint:       getEnv("PNCP_ENDPOINT", "contratacoes/publicacao"),
		PageSize:       getEnvInt("PNCP_PAGE_SIZE", 50),
		MaxWorkers:     getEnvInt("PNCP_MAX_WORKERS", 3),
		MaxRetries:     getEnvInt("PNCP_MAX_RETRIES", 5),
		RetryBaseDelay: getEnvDuration("PNCP_RETRY_BASE_DELAY", 2*time.Second),
		RequestDelay:   getEnvDuration("PNCP_REQUEST_DELAY", 500*time.Millisecond),
		RequestTimeout: getEnvDuration("PNCP_REQUEST_TIMEOUT", 120*time.Second),
		CategoryPause:  getEnvDuration("PNCP_CATEGORY_PAUSE", time.Second),

		BackfillStart:  getEnv("PNCP_BACKFILL_START", "2025-08-01"),
		ProductionMode: getEnvBool("PNCP_PRODUCTION", true),

		S3Bucket:         getEnv("S3_BUCKET", ""),
		LocalDataDir:     getEnv("PNCP_DATA_DIR", "data"),
		DatasetName:      getEnv("PNCP_DATASET", "pncp_contratos"),
		StateKey:         getEnv("PNCP_STATE_KEY", "state.json"),
		StateLocalPath:   getEnv("PNCP_STATE_LOCAL", "state.json"),
		ConsolidationAge: getEnvInt("PNCP_CONSOLIDATION_DAYS", 30),

		FilterEnabled: getEnvBool("FILTER_ENABLED", true),
		GroupsFile:    getEnv("FILTER_GROUPS_FILE", "filtros.yaml"),

		OracleEnabled:   getEnvBool("LLM_FILTER_ENABLED", true),
		OracleProvider:  getEnv("LLM_PROVIDER", ProviderOpenAI),
		OracleModel:     getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		OracleMaxTokens: getEnvInt("LLM_MAX_TOKENS", 500),
		OracleTemp:      getEnvFloat("LLM_TEMPERATURE", 0.1),
		OracleMaxPerMin: getEnvInt("LLM_MAX_REQUESTS_PER_MINUTE", 60),
		OracleDelay:     getEnvDuration("LLM_DELAY_BETWEEN_REQUESTS", time.Second),
		OracleCacheTTL:  getEnvDuration("LLM_CACHE_TTL", 24*time.Hour),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LogFile:  getEnv("PNCP_LOG_FILE", "extractor.log"),
		LogLevel: parseLogLevel(getEnv("PNCP_LOG_LEVEL", "INFO")),
	}
}

// UseS3 reports whether the blob store should be backed by S3.
// Mirrors the original auto-detection: a bucket plus an AWS region.
func (c Config) UseS3() bool {
	if c.S3Bucket == "" {
		return false
	}
	return os.Getenv("AWS_REGION") != "" || os.Getenv("AWS_DEFAULT_REGION") != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
