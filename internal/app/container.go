// Package app wires configuration into the running components. Both the HTTP
// server and the CLI commands build their dependencies through a Container.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dpolishuk/sketch2code/internal/api"
	"github.com/dpolishuk/sketch2code/internal/coder"
	"github.com/dpolishuk/sketch2code/internal/config"
	"github.com/dpolishuk/sketch2code/internal/db"
	"github.com/dpolishuk/sketch2code/internal/embedding"
	"github.com/dpolishuk/sketch2code/internal/export"
	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/dpolishuk/sketch2code/internal/pipeline"
	"github.com/dpolishuk/sketch2code/internal/retriever"
	"github.com/dpolishuk/sketch2code/internal/retry"
	"github.com/dpolishuk/sketch2code/internal/snippet"
	"github.com/dpolishuk/sketch2code/internal/validator"
	"github.com/dpolishuk/sketch2code/internal/vision"
)

type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Snippets snippet.Store
	Pipeline *pipeline.Orchestrator
	Exporter export.Writer

	ping    func(ctx context.Context) error
	closers []func()
}

// NewStore builds only the snippet store. Commands that never call a model
// (index, search) use it so they run without model credentials.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger}
	if err := c.initSnippets(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// New builds every component needed to serve diagram-to-code sessions.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.initPipeline(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initExporter(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) policy(timeout time.Duration) retry.Policy {
	p := c.Config.Pipeline
	return retry.Policy{
		Retries:     p.Retries,
		BaseBackoff: p.BaseBackoff,
		MaxBackoff:  p.MaxBackoff,
		Timeout:     timeout,
	}
}

func (c *Container) embedder() (embedding.Embedder, error) {
	ec := c.Config.Embedding
	var base embedding.Embedder
	switch ec.Provider {
	case "openai":
		if c.Config.LLM.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embeddings: %w", llm.ErrAPIKeyNotSet)
		}
		base = embedding.NewOpenAIEmbedder(c.Config.LLM.OpenAIKey, c.Config.LLM.OpenAIBaseURL, ec.Model, ec.Dimensions)
	default:
		base = embedding.NewTEIClient(ec.TEIURL)
	}
	if ec.CacheSize > 0 {
		return embedding.NewCachedEmbedder(base, ec.CacheSize, ec.CacheTTL), nil
	}
	return base, nil
}

func (c *Container) initSnippets(ctx context.Context) error {
	sc := c.Config.Snippets
	switch sc.Backend {
	case "neo4j":
		emb, err := c.embedder()
		if err != nil {
			return err
		}
		client, err := db.NewNeo4jClient(ctx, db.Neo4jConfig{
			URI:      c.Config.Neo4j.URI,
			Username: c.Config.Neo4j.User,
			Password: c.Config.Neo4j.Password,
			Database: c.Config.Neo4j.Database,
		})
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		if err := client.CreateSnippetIndex(ctx, c.Config.Embedding.Dimensions); err != nil {
			return err
		}
		c.Snippets = snippet.NewNeo4jIndex(client, emb)
		c.ping = client.Ping

	case "pgvector":
		emb, err := c.embedder()
		if err != nil {
			return err
		}
		store, err := db.NewPgStore(ctx, sc.PostgresDSN, c.Config.Embedding.Dimensions)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		c.Snippets = snippet.NewPgvectorIndex(store, emb)
		c.ping = store.Pool.Ping

	default:
		mem := snippet.NewMemoryIndex()
		c.Snippets = mem
		if sc.SeedDir != "" {
			res, err := snippet.IngestDir(ctx, snippet.NewLoader(), mem, sc.SeedDir)
			if err != nil {
				return fmt.Errorf("seed snippets from %s: %w", sc.SeedDir, err)
			}
			c.Logger.Info("seeded in-memory snippet index",
				"dir", sc.SeedDir,
				"files", res.FilesProcessed,
				"snippets", len(res.Records),
				"errors", len(res.Errors))
		}
	}
	return nil
}

func (c *Container) modelClient(ctx context.Context, model string, timeout time.Duration) (llm.Client, error) {
	lc := c.Config.LLM
	cfg := llm.Config{
		Provider:  lc.Provider,
		APIKey:    lc.OpenAIKey,
		BaseURL:   lc.OpenAIBaseURL,
		RemoteURL: lc.RemoteURL,
		Model:     model,
	}
	if lc.Provider == llm.ProviderGemini {
		cfg.APIKey = lc.GeminiKey
	}
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("model client %s: %w", model, err)
	}
	return llm.WithRetry(client, c.policy(timeout)), nil
}

func (c *Container) initPipeline(ctx context.Context) error {
	pc := c.Config.Pipeline

	visionClient, err := c.modelClient(ctx, c.Config.LLM.VisionModel, pc.VisionTimeout)
	if err != nil {
		return err
	}
	coderClient, err := c.modelClient(ctx, c.Config.LLM.CoderModel, pc.CoderTimeout)
	if err != nil {
		return err
	}

	analyzer := vision.NewLLMAnalyzer(visionClient, c.Config.LLM.VisionModel, c.Logger)
	ret := retriever.New(c.Snippets, pc.TopK, c.policy(pc.IndexTimeout), c.Logger)
	gen := coder.NewLLMCoder(coderClient, c.Config.LLM.CoderModel, c.Logger,
		coder.WithTokenCounter(coder.DefaultTokenCounter(c.Logger)),
		coder.WithSnippetBudget(pc.SnippetTokenBudget),
	)

	c.Pipeline = pipeline.New(analyzer, ret, gen, validator.New(), pipeline.Config{
		MaxAttempts:   pc.MaxAttempts,
		MaxImageBytes: pc.MaxImageBytes,
	}, pipeline.WithLogger(c.Logger))
	return nil
}

func (c *Container) initExporter() error {
	ec := c.Config.Export
	switch {
	case ec.S3Enabled():
		w, err := export.NewS3Writer(export.S3Config{
			Endpoint:  ec.S3Endpoint,
			Region:    ec.S3Region,
			AccessKey: ec.S3AccessKey,
			SecretKey: ec.S3SecretKey,
			Bucket:    ec.S3Bucket,
			UseSSL:    ec.S3UseSSL,
			Prefix:    "sessions",
		})
		if err != nil {
			return err
		}
		c.Exporter = w
	case ec.Dir != "":
		c.Exporter = export.NewDiskWriter(ec.Dir)
	}
	return nil
}

// Ping checks the snippet backend. The in-memory backend is always ready.
func (c *Container) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	return c.ping(ctx)
}

// Handler returns the HTTP handler backed by this container.
func (c *Container) Handler() (*api.Handler, error) {
	if c.Pipeline == nil {
		return nil, errors.New("pipeline is not initialized")
	}
	return api.NewHandler(api.HandlerConfig{
		Runner:        c.Pipeline,
		Snippets:      c.Snippets,
		Exporter:      c.Exporter,
		Ping:          c.Ping,
		MaxImageBytes: c.Config.Pipeline.MaxImageBytes,
		Logger:        c.Logger,
	}), nil
}

// Close releases backend connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
