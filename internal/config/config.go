// Package config loads ragsuite service configuration from the environment,
// following the enumerated keys in the specification plus the ambient keys
// every service needs (logging, cache, object storage, tracing, metrics).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-driven setting any ragsuite service may
// consult. Each binary reads only the fields relevant to it.
type Config struct {
	SQLiteDataDir string

	QdrantURL              string
	QdrantCollectionPrefix string

	OllamaURL          string
	IngestionAPIURL    string
	InferenceAPIURL    string
	RerankerAPIURL     string
	OrchestratorAPIURL string

	NormalizationVersion     string
	ChunkingVersion          string
	ContextualizationVersion string

	RAGDefaultHistoryWindowMessages int

	RerankUnloadAfterRequest bool
	RerankDevice             string
	KeepAlive                string

	RedisURL string

	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	OTLPEndpoint string
	LogLevel     string
	MetricsAddr  string

	HTTPTimeout time.Duration
}

// Load reads Config from the process environment, applying the defaults the
// teacher's services inline into their own main.go files.
func Load() Config {
	return Config{
		SQLiteDataDir: getenv("RAGSUITE_SQLITE_DATA_DIR", "data"),

		QdrantURL:              getenv("RAGSUITE_QDRANT_URL", "localhost:6334"),
		QdrantCollectionPrefix: getenv("RAGSUITE_QDRANT_COLLECTION_PREFIX", "ragsuite"),

		OllamaURL:          getenv("RAGSUITE_OLLAMA_URL", "http://localhost:11434"),
		IngestionAPIURL:    getenv("RAGSUITE_INGESTION_API_URL", "http://localhost:8090"),
		InferenceAPIURL:    getenv("RAGSUITE_INFERENCE_API_URL", "http://localhost:8081"),
		RerankerAPIURL:     getenv("RAGSUITE_RERANKER_API_URL", "http://localhost:8082"),
		OrchestratorAPIURL: getenv("RAGSUITE_ORCHESTRATOR_API_URL", "http://localhost:8083"),

		NormalizationVersion:     getenv("RAGSUITE_NORMALIZATION_VERSION", "v1"),
		ChunkingVersion:          getenv("RAGSUITE_CHUNKING_VERSION", "v1"),
		ContextualizationVersion: getenv("RAGSUITE_CONTEXTUALIZATION_VERSION", "v1"),

		RAGDefaultHistoryWindowMessages: clampInt(getenvInt("RAGSUITE_RAG_DEFAULT_HISTORY_WINDOW_MESSAGES", 8), 0, 40),

		RerankUnloadAfterRequest: getenvBool("RAGSUITE_RERANK_UNLOAD_AFTER_REQUEST", false),
		RerankDevice:             getenv("RAGSUITE_RERANK_DEVICE", "auto"),
		KeepAlive:                getenv("RAGSUITE_KEEP_ALIVE", "5m"),

		RedisURL: getenv("RAGSUITE_REDIS_URL", ""),

		MinioEndpoint:  getenv("RAGSUITE_MINIO_ENDPOINT", ""),
		MinioBucket:    getenv("RAGSUITE_MINIO_BUCKET", "ragsuite-documents"),
		MinioAccessKey: getenv("RAGSUITE_MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("RAGSUITE_MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getenvBool("RAGSUITE_MINIO_USE_SSL", false),

		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		LogLevel:     getenv("RAGSUITE_LOG_LEVEL", "info"),
		MetricsAddr:  getenv("RAGSUITE_METRICS_ADDR", ":9109"),

		HTTPTimeout: getenvDuration("RAGSUITE_HTTP_TIMEOUT", 60*time.Second),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CollectionName derives a project's Qdrant collection name from the
// configured prefix, per spec.md §6.
func (c Config) CollectionName(projectName string) string {
	slug := strings.ToLower(strings.ReplaceAll(projectName, " ", "_"))
	return c.QdrantCollectionPrefix + "_" + slug
}
