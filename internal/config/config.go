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
	CORSOrigins []string

	// Embedding storage (Postgres + pgvector)
	PostgresURL string

	// File collaborator storage
	MongoURI       string
	DBName         string
	FileStorageDir string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embeddings configuration
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	VectorDim             int
	EmbedTimeout          time.Duration
	EmbedRPM              int // client-side requests-per-minute budget

	// OCR service configuration
	OCRServiceURL          string
	OCRTimeout             time.Duration
	OCRConfidenceThreshold float64

	// Page rendering
	PDFRenderDPI int

	// Indexing pipeline
	PageRetryMax     int
	PageRetryBackoff time.Duration
	PageConcurrency  int
	IndexingTimeout  time.Duration

	// Search
	MaxTopK int

	// Rate limiting (HTTP layer)
	RateLimitReqs   int
	RateLimitWindow int

	// Maintenance
	OrphanSweepInterval time.Duration

	// Telemetry
	OTLPEndpoint string
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
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		PostgresURL: getEnv("POSTGRES_URL", ""),

		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/filerepo"),
		DBName:         getEnv("DB_NAME", "filerepo"),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDim:             getEnvInt("VECTOR_DIM", 768),
		EmbedTimeout:          getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		EmbedRPM:              getEnvInt("EMBED_RPM", 600),

		OCRServiceURL:          getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRTimeout:             getEnvDuration("OCR_TIMEOUT", 60*time.Second),
		OCRConfidenceThreshold: getEnvFloat64("OCR_CONFIDENCE_THRESHOLD", 0.7),

		PDFRenderDPI: getEnvInt("PDF_RENDER_DPI", 200),

		PageRetryMax:     getEnvInt("PAGE_RETRY_MAX", 3),
		PageRetryBackoff: getEnvDuration("PAGE_RETRY_BACKOFF", time.Second),
		PageConcurrency:  getEnvInt("PAGE_CONCURRENCY", 4),
		IndexingTimeout:  getEnvDuration("INDEXING_TIMEOUT", 10*time.Minute),

		MaxTopK: getEnvInt("MAX_TOP_K", 20),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OrphanSweepInterval: getEnvDuration("ORPHAN_SWEEP_INTERVAL", time.Hour),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be positive, got %d", cfg.VectorDim)
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
		// Plain integers are treated as seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
