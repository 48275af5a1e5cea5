package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	LLM       LLMConfig
	Snippets  SnippetConfig
	Neo4j     Neo4jConfig
	Embedding EmbeddingConfig
	Pipeline  PipelineConfig
	Export    ExportConfig
	OTel      OTelConfig
}

type LLMConfig struct {
	Provider      string // openai, gemini, remote
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
	RemoteURL     string
	VisionModel   string
	CoderModel    string
}

type SnippetConfig struct {
	Backend     string // memory, neo4j, pgvector
	SeedDir     string
	PostgresDSN string
}

type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

type EmbeddingConfig struct {
	Provider   string // tei, openai
	TEIURL     string
	Model      string
	Dimensions int
	CacheSize  int
	CacheTTL   time.Duration
}

type PipelineConfig struct {
	MaxAttempts        int
	TopK               int
	VisionTimeout      time.Duration
	IndexTimeout       time.Duration
	CoderTimeout       time.Duration
	Retries            int
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
	MaxImageBytes      int
	SnippetTokenBudget int
}

type ExportConfig struct {
	Dir         string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

func (c ExportConfig) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Load reads envFile (if it exists) into the process environment and builds
// the configuration from environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:     getEnv("BACKEND_PORT", "3001"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:     getEnv("GEMINI_API_KEY", ""),
			RemoteURL:     getEnv("REMOTE_MODEL_URL", "http://localhost:8000"),
			VisionModel:   getEnv("VISION_MODEL", "gpt-4o"),
			CoderModel:    getEnv("CODER_MODEL", "gpt-4o"),
		},
		Snippets: SnippetConfig{
			Backend:     getEnv("SNIPPET_BACKEND", "memory"),
			SeedDir:     getEnv("SNIPPET_DIR", ""),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		Neo4j: Neo4jConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", "neo4j_password"),
			Database: getEnv("NEO4J_DATABASE", "neo4j"),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("EMBEDDING_PROVIDER", "tei"),
			TEIURL:     getEnv("TEI_URL", "http://localhost:8080"),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
			CacheSize:  getEnvInt("EMBEDDING_CACHE_SIZE", 512),
			CacheTTL:   getEnvDuration("EMBEDDING_CACHE_TTL", 10*time.Minute),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:        getEnvInt("PIPELINE_MAX_ATTEMPTS", 3),
			TopK:               getEnvInt("RETRIEVAL_TOP_K", 5),
			VisionTimeout:      getEnvDuration("VISION_TIMEOUT", 60*time.Second),
			IndexTimeout:       getEnvDuration("INDEX_TIMEOUT", 10*time.Second),
			CoderTimeout:       getEnvDuration("CODER_TIMEOUT", 120*time.Second),
			Retries:            getEnvInt("COLLABORATOR_RETRIES", 2),
			BaseBackoff:        getEnvDuration("RETRY_BASE_BACKOFF", 500*time.Millisecond),
			MaxBackoff:         getEnvDuration("RETRY_MAX_BACKOFF", 8*time.Second),
			MaxImageBytes:      getEnvInt("MAX_IMAGE_BYTES", 10<<20),
			SnippetTokenBudget: getEnvInt("SNIPPET_TOKEN_BUDGET", 3000),
		},
		Export: ExportConfig{
			Dir:         getEnv("EXPORT_DIR", ""),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "sketch2code"),
			ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PIPELINE_MAX_ATTEMPTS must be >= 1, got %d", p.MaxAttempts))
	}
	if p.TopK < 1 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_TOP_K must be >= 1, got %d", p.TopK))
	}
	if p.VisionTimeout <= 0 || p.IndexTimeout <= 0 || p.CoderTimeout <= 0 {
		errs = append(errs, errors.New("collaborator timeouts must be positive"))
	}
	if p.Retries < 0 {
		errs = append(errs, fmt.Errorf("COLLABORATOR_RETRIES must be >= 0, got %d", p.Retries))
	}
	if p.MaxImageBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES must be >= 1, got %d", p.MaxImageBytes))
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "remote":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	switch c.Snippets.Backend {
	case "memory", "neo4j", "pgvector":
	default:
		errs = append(errs, fmt.Errorf("unknown SNIPPET_BACKEND %q", c.Snippets.Backend))
	}
	if c.Snippets.Backend == "pgvector" && c.Snippets.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required for the pgvector backend"))
	}
	switch c.Embedding.Provider {
	case "tei", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}
