package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Index backends selectable through INDEX_BACKEND.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	DocsPath  string
	IndexPath string

	IndexBackend     string
	QdrantURL        string
	QdrantCollection string

	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingVectorSize int
	EmbeddingBatchSize  int
	EmbeddingTimeout    time.Duration

	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	LLMTimeout   time.Duration

	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or one of its parents, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		DocsPath:           getEnv("DOCS_PATH", ""),
		IndexPath:          getEnv("INDEX_PATH", "./data/index"),
		IndexBackend:       strings.ToLower(getEnv("INDEX_BACKEND", BackendLocal)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "docs"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "thenlper/gte-small"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-3.5-turbo-instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		APIPort:            getEnv("API_PORT", "8000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	// gte-small produces 384-dimensional vectors. A different embedding model
	// needs a matching size here and a rebuilt index.
	if cfg.EmbeddingVectorSize, err = getPositiveInt("EMBEDDING_VECTOR_SIZE", 384); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBatchSize, err = getPositiveInt("EMBEDDING_BATCH_SIZE", 32); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getPositiveInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.RetrievalK, err = getPositiveInt("RETRIEVAL_K", 4); err != nil {
		return nil, err
	}

	overlapStr := getEnv("CHUNK_OVERLAP", "100")
	cfg.ChunkOverlap, err = strconv.Atoi(overlapStr)
	if err != nil {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be a valid integer: %w", err)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be between 0 and CHUNK_SIZE-1")
	}

	if cfg.EmbeddingTimeout, err = getDuration("EMBEDDING_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	switch cfg.IndexBackend {
	case BackendLocal, BackendQdrant:
	default:
		return nil, fmt.Errorf("INDEX_BACKEND must be %s or %s, got %q", BackendLocal, BackendQdrant, cfg.IndexBackend)
	}

	// Validate required fields
	if cfg.DocsPath == "" {
		return nil, fmt.Errorf("DOCS_PATH is required")
	}
	info, err := os.Stat(cfg.DocsPath)
	if err != nil {
		return nil, fmt.Errorf("DOCS_PATH is not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("DOCS_PATH must be a directory: %s", cfg.DocsPath)
	}

	// The index directory itself is created on first build; only its parent must exist.
	if cfg.IndexBackend == BackendLocal {
		if err := os.MkdirAll(filepath.Dir(cfg.IndexPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index parent directory: %w", err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
