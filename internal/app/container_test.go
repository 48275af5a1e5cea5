package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dpolishuk/sketch2code/internal/config"
	"github.com/dpolishuk/sketch2code/internal/export"
	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:      "test",
		LogLevel: "error",
		LLM: config.LLMConfig{
			Provider:    "openai",
			OpenAIKey:   "sk-test",
			VisionModel: "gpt-4o",
			CoderModel:  "gpt-4o",
		},
		Snippets:  config.SnippetConfig{Backend: "memory"},
		Embedding: config.EmbeddingConfig{Provider: "tei", TEIURL: "http://localhost:8080", Dimensions: 8},
		Pipeline: config.PipelineConfig{
			MaxAttempts:        3,
			TopK:               5,
			VisionTimeout:      time.Second,
			IndexTimeout:       time.Second,
			CoderTimeout:       time.Second,
			Retries:            1,
			MaxImageBytes:      1 << 20,
			SnippetTokenBudget: 1000,
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStore_SeedsMemoryIndex(t *testing.T) {
	dir := t.TempDir()
	src := "package orders\n\ntype OrdersRepository struct{}\n\nfunc SaveOrder() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.go"), []byte(src), 0o644))

	cfg := testConfig(t)
	cfg.Snippets.SeedDir = dir

	c, err := NewStore(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	hits, err := c.Snippets.Search(context.Background(), "orders repository", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Snippet.Content, "OrdersRepository")
	assert.NoError(t, c.Ping(context.Background()))
	assert.Nil(t, c.Pipeline)
}

func TestNew_BuildsPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Dir = t.TempDir()

	c, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Pipeline)
	assert.IsType(t, &export.DiskWriter{}, c.Exporter)

	h, err := c.Handler()
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestNew_S3ExporterPreferred(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export = config.ExportConfig{
		Dir:         t.TempDir(),
		S3Endpoint:  "localhost:9000",
		S3AccessKey: "minio",
		S3SecretKey: "minio123",
		S3Bucket:    "artifacts",
	}

	c, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &export.S3Writer{}, c.Exporter)
}

func TestNew_MissingModelKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAIKey = ""

	_, err := New(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrAPIKeyNotSet))
}

func TestHandler_RequiresPipeline(t *testing.T) {
	c, err := NewStore(context.Background(), testConfig(t), quietLogger())
	require.NoError(t, err)
	_, err = c.Handler()
	assert.Error(t, err)
}

func TestEmbedder_OpenAIRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "openai"
	cfg.LLM.OpenAIKey = ""
	c := &Container{Config: cfg, Logger: quietLogger()}

	_, err := c.embedder()
	assert.ErrorIs(t, err, llm.ErrAPIKeyNotSet)
}
