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
	ServiceName string
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int
	QueueEnabled  bool

	// Duplicate detection
	DuplicateScanLimit   int
	DuplicateScanTimeout time.Duration
	IngestLockTTL        time.Duration

	// Redaction
	RedactionRulesFile string

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	OpenAIBaseURL         string
	VectorDimensions      int

	// CV validation gate
	CVValidationEnabled bool
	ValidationProvider  string // "google" (default), "openai"
	ValidationModel     string
	LLMTier             string

	// Service token auth, disabled when JWTSecret is empty
	JWTSecret       string
	JWTExpiresIn    string
	RateLimitReqs   int
	RateLimitWindow int

	ReconcileInterval time.Duration

	// Telemetry
	OTelEnabled      bool
	OTelEndpoint     string
	TraceSampleRatio float64
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the environment without validation. Offline tools that never
// reach the embedding provider use it directly.
func Load() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "cv-rag-platform"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/cv_rag"),
		DBName:      getEnv("DB_NAME", "cv_rag"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueEnabled:  getEnvBool("QUEUE_ENABLED", true),

		DuplicateScanLimit:   getEnvInt("DUPLICATE_SCAN_LIMIT", 1000),
		DuplicateScanTimeout: time.Duration(getEnvInt("DUPLICATE_SCAN_TIMEOUT", 5)) * time.Second,
		IngestLockTTL:        time.Duration(getEnvInt("INGEST_LOCK_TTL", 60)) * time.Second,

		RedactionRulesFile: getEnv("REDACTION_RULES_FILE", ""),

		EmbeddingsProvider:    strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", "google")),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		CVValidationEnabled: getEnvBool("CV_VALIDATION_ENABLED", false),
		ValidationProvider:  strings.ToLower(getEnv("VALIDATION_PROVIDER", "google")),
		ValidationModel:     getEnv("VALIDATION_MODEL", ""),
		LLMTier:             getEnv("LLM_TIER", "free"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiresIn:    getEnv("JWT_EXPIRES_IN", "24h"),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		ReconcileInterval: time.Duration(getEnvInt("RECONCILE_INTERVAL", 10)) * time.Minute,

		OTelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 1.0),
	}

	if cfg.ValidationModel == "" {
		if cfg.ValidationProvider == "openai" {
			cfg.ValidationModel = "gpt-4o-mini"
		} else {
			cfg.ValidationModel = "gemini-2.0-flash"
		}
	}

	return cfg, nil
}

// Validate checks that the credentials needed by the configured providers
// are present.
func (cfg *Config) Validate() error {
	switch cfg.EmbeddingsProvider {
	case "google":
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EMBEDDINGS_PROVIDER=google - set it in .env file")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDINGS_PROVIDER=openai - set it in .env file")
		}
	default:
		return fmt.Errorf("unsupported EMBEDDINGS_PROVIDER %q", cfg.EmbeddingsProvider)
	}

	if cfg.CVValidationEnabled {
		switch cfg.ValidationProvider {
		case "google":
			if cfg.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required when VALIDATION_PROVIDER=google - set it in .env file")
			}
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required when VALIDATION_PROVIDER=openai - set it in .env file")
			}
		default:
			return fmt.Errorf("unsupported VALIDATION_PROVIDER %q", cfg.ValidationProvider)
		}
	}

	if cfg.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive")
	}
	if cfg.DuplicateScanLimit <= 0 {
		return fmt.Errorf("DUPLICATE_SCAN_LIMIT must be positive")
	}

	return nil
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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
