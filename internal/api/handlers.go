package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/export"
	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/internal/pipeline"
	"github.com/dpolishuk/sketch2code/internal/snippet"
	"github.com/gofiber/fiber/v3"
)

// Runner executes one diagram-to-code session.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Handler struct {
	runner        Runner
	snippets      snippet.Store
	exporter      export.Writer
	ping          func(ctx context.Context) error
	maxImageBytes int
	logger        *slog.Logger
}

type HandlerConfig struct {
	Runner        Runner
	Snippets      snippet.Store
	Exporter      export.Writer
	Ping          func(ctx context.Context) error
	MaxImageBytes int
	Logger        *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:        cfg.Runner,
		snippets:      cfg.Snippets,
		exporter:      cfg.Exporter,
		ping:          cfg.Ping,
		maxImageBytes: cfg.MaxImageBytes,
		logger:        logger.With("component", "api"),
	}
}

// Health reports liveness and whether the snippet backend answers.
func (h *Handler) Health(c fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "service": "sketch2code", "snippets": "ready"}
	if h.ping != nil {
		if err := h.ping(c.Context()); err != nil {
			status["status"] = "degraded"
			status["snippets"] = err.Error()
			return c.Status(503).JSON(status)
		}
	}
	return c.JSON(status)
}

type analyzeResponse struct {
	SessionID      string                 `json:"sessionId"`
	Status         string                 `json:"status"`
	Reply          string                 `json:"reply"`
	Entities       []models.Entity        `json:"entities"`
	Relations      []models.Relation      `json:"relations"`
	Code           string                 `json:"code,omitempty"`
	Files          map[string]string      `json:"files,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
	Attempts       int                    `json:"attempts"`
	Warning        string                 `json:"warning,omitempty"`
	Discrepancies  []models.Discrepancy   `json:"discrepancies"`
	Snippets       []models.ScoredSnippet `json:"snippets"`
	ExportLocation string                 `json:"exportLocation,omitempty"`
}

// Analyze runs the pipeline on a multipart upload with "query" and "image" fields.
func (h *Handler) Analyze(c fiber.Ctx) error {
	query := c.FormValue("query")
	header, err := c.FormFile("image")
	if err != nil {
		return writeError(c, models.InvalidInput("image file is required"))
	}
	if h.maxImageBytes > 0 && header.Size > int64(h.maxImageBytes) {
		return writeError(c, models.InvalidInput(fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes)))
	}

	f, err := header.Open()
	if err != nil {
		return writeError(c, models.InvalidInput("image upload could not be read"))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, models.InvalidInput("image upload could not be read"))
	}

	ctx := c.Context()
	result, err := h.runner.Run(ctx, pipeline.Request{Query: query, Image: data})
	if err != nil {
		h.logger.WarnContext(ctx, "analyze request failed", "error", err)
		return writeError(c, err)
	}

	resp := analyzeResponse{
		SessionID:     result.SessionID,
		Status:        strings.ToLower(string(result.Status)),
		Reply:         result.Reply,
		Entities:      []models.Entity{},
		Relations:     []models.Relation{},
		Attempts:      result.Attempts,
		Warning:       result.Warning,
		Discrepancies: []models.Discrepancy{},
		Snippets:      result.Retrieval.Items,
	}
	if resp.Snippets == nil {
		resp.Snippets = []models.ScoredSnippet{}
	}
	if result.Analysis != nil {
		resp.Entities = result.Analysis.Entities
		resp.Relations = result.Analysis.Relations
	}
	if result.Report != nil {
		resp.Discrepancies = result.Report.Discrepancies
	}
	if a := result.Artifact; a != nil {
		resp.Code = a.Render()
		resp.Files = a.Files
		resp.Summary = a.Summary

		if h.exporter != nil {
			loc, err := h.exporter.Write(ctx, result.SessionID, a)
			if err != nil {
				h.logger.WarnContext(ctx, "artifact export failed", "session_id", result.SessionID, "error", err)
			} else {
				resp.ExportLocation = loc
			}
		}
	}

	return c.JSON(resp)
}

type addSnippetsRequest struct {
	Snippets []models.SnippetRecord `json:"snippets"`
}

// AddSnippets stores reference snippets. Records without an id get one
// derived from their language and content.
func (h *Handler) AddSnippets(c fiber.Ctx) error {
	if h.snippets == nil {
		return c.Status(501).JSON(fiber.Map{"detail": "snippet store is not configured"})
	}

	var req addSnippetsRequest
	if err := c.Bind().Body(&req); err != nil {
		return writeError(c, models.InvalidInput("invalid request body"))
	}
	if len(req.Snippets) == 0 {
		return writeError(c, models.InvalidInput("snippets must not be empty"))
	}
	for i := range req.Snippets {
		rec := &req.Snippets[i]
		if strings.TrimSpace(rec.Content) == "" {
			return writeError(c, models.InvalidInput(fmt.Sprintf("snippet %d has no content", i)))
		}
		if rec.ID == "" {
			rec.ID = snippet.SnippetID("api/"+rec.Language, rec.Content)
		}
	}

	if err := h.snippets.Add(c.Context(), req.Snippets); err != nil {
		return c.Status(502).JSON(fiber.Map{"detail": "failed to store snippets: " + err.Error()})
	}

	ids := make([]string, len(req.Snippets))
	for i, rec := range req.Snippets {
		ids[i] = rec.ID
	}
	return c.Status(201).JSON(fiber.Map{"added": len(ids), "ids": ids})
}

// SearchSnippets exposes raw index search for inspecting retrieval.
func (h *Handler) SearchSnippets(c fiber.Ctx) error {
	if h.snippets == nil {
		return c.Status(501).JSON(fiber.Map{"detail": "snippet store is not configured"})
	}

	query := c.Query("q")
	if query == "" {
		return writeError(c, models.InvalidInput("query parameter 'q' is required"))
	}
	k := fiber.Query[int](c, "k", 5)
	if k < 1 {
		k = 1
	}
	if k > 50 {
		k = 50
	}

	results, err := h.snippets.Search(c.Context(), query, k)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"detail": "search failed: " + err.Error()})
	}
	if results == nil {
		results = []models.ScoredSnippet{}
	}
	return c.JSON(results)
}
