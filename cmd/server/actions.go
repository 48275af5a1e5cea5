package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dpolishuk/sketch2code/internal/api"
	"github.com/dpolishuk/sketch2code/internal/app"
	"github.com/dpolishuk/sketch2code/internal/config"
	"github.com/dpolishuk/sketch2code/internal/export"
	"github.com/dpolishuk/sketch2code/internal/logger"
	"github.com/dpolishuk/sketch2code/internal/pipeline"
	"github.com/dpolishuk/sketch2code/internal/snippet"
	"github.com/dpolishuk/sketch2code/internal/source"
	"github.com/dpolishuk/sketch2code/internal/telemetry"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// bootstrap loads configuration and installs telemetry and logging. The
// returned func flushes telemetry.
func bootstrap(ctx context.Context, cmd *cli.Command) (*config.Config, func(), error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return nil, nil, fmt.Errorf("setup telemetry: %w", err)
	}
	logger.Setup(cfg)

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}
	return cfg, shutdown, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	c, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	h, err := c.Handler()
	if err != nil {
		return err
	}
	server := api.NewApp(h, cfg.Pipeline.MaxImageBytes+(1<<20))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting sketch2code API", "port", cfg.Port, "env", cfg.Env, "snippet_backend", cfg.Snippets.Backend)
		errCh <- server.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.ShutdownWithContext(sctx)
}

func indexAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	if cfg.Snippets.Backend == "memory" {
		slog.Warn("memory backend does not persist; indexed snippets are discarded on exit")
	}

	c, err := app.NewStore(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	dir := cmd.String("dir")
	if repo := cmd.String("repo"); repo != "" {
		co, err := source.NewGitFetcher(cmd.String("checkout-dir")).Fetch(ctx, repo, cmd.String("ref"))
		if err != nil {
			return err
		}
		slog.Info("repository checked out", "repo", co.Name, "commit", co.Commit, "dir", co.Dir)
		dir = co.Dir
	}
	if dir == "" {
		return errors.New("either --dir or --repo is required")
	}

	res, err := snippet.IngestDir(ctx, snippet.NewLoader(), c.Snippets, dir)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		slog.Warn("file skipped", "error", e)
	}
	fmt.Printf("indexed %d snippets from %d files in %s\n", len(res.Records), res.FilesProcessed, dir)
	return nil
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	image, err := os.ReadFile(cmd.String("image"))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	c, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	res, runErr := c.Pipeline.Run(ctx, pipeline.Request{Query: cmd.String("query"), Image: image})
	if res != nil {
		printResult(res)
	}
	if runErr != nil {
		return runErr
	}

	if out := cmd.String("out"); out != "" && res.Artifact != nil {
		loc, err := export.NewDiskWriter(out).Write(ctx, res.SessionID, res.Artifact)
		if err != nil {
			return err
		}
		fmt.Printf("\nfiles written to %s\n", loc)
	}
	return nil
}

func printResult(res *pipeline.Result) {
	fmt.Printf("session %s: %s after %d attempt(s)\n", res.SessionID, strings.ToLower(string(res.Status)), res.Attempts)
	if res.Warning != "" {
		fmt.Printf("warning: %s\n", res.Warning)
	}
	if res.Reply != "" {
		fmt.Printf("\n%s\n", res.Reply)
	}
	if res.Report != nil {
		for _, d := range res.Report.Discrepancies {
			fmt.Printf("  [%s] %s\n", d.Severity, d.Description)
		}
	}
	if res.Artifact != nil {
		fmt.Printf("\n%s", res.Artifact.Render())
	}
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	c, err := app.NewStore(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	k := int(cmd.Int("k"))
	if k < 1 {
		return errors.New("k must be at least 1")
	}
	hits, err := c.Snippets.Search(ctx, cmd.String("q"), k)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no matching snippets")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%.3f  %s  [%s] %s\n", h.Score, h.Snippet.ID, h.Snippet.Language, strings.Join(h.Snippet.Tags, ","))
	}
	return nil
}
