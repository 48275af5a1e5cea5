// Package vision turns a diagram image and a user query into a sanitized
// DiagramAnalysis using a multimodal model.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/dpolishuk/sketch2code/internal/models"
)

// Analyzer extracts entities and relations from a diagram.
type Analyzer interface {
	Analyze(ctx context.Context, img models.Image, query string) (*models.DiagramAnalysis, error)
}

type entityPayload struct {
	Label       string    `json:"label" jsonschema:"description=Text shown on or next to the shape"`
	Type        string    `json:"type" jsonschema:"enum=Actor,enum=Process,enum=Database,enum=Interface,enum=Other"`
	BoundingBox []float64 `json:"boundingBox,omitempty" jsonschema:"description=[x1 y1 x2 y2] in image pixels,minItems=4,maxItems=4"`
}

type relationPayload struct {
	Source    string `json:"source" jsonschema:"description=Label of the source entity"`
	Target    string `json:"target" jsonschema:"description=Label of the target entity"`
	Kind      string `json:"kind" jsonschema:"description=Short verb such as calls or stores or flows-to"`
	Direction string `json:"direction,omitempty" jsonschema:"enum=uni,enum=bi"`
}

type analysisPayload struct {
	Entities  []entityPayload   `json:"entities"`
	Relations []relationPayload `json:"relations"`
	Reply     string            `json:"reply" jsonschema:"description=Plain-language explanation of the diagram that answers the user query"`
}

const systemPrompt = `You are a software architect reading a system diagram.
List every box, shape or icon as an entity with its visible label and one type:
Actor (people or external users), Process (services, workers, functions),
Database (any data store, cache or queue), Interface (APIs, gateways, UIs), Other.
List every arrow or connector as a relation between entity labels exactly as written.
Then answer the user's question about the diagram in the reply field.
Respond with a single JSON object and nothing else.`

// LLMAnalyzer asks a vision-capable model for a structured reading of the diagram.
type LLMAnalyzer struct {
	client llm.Client
	model  string
	logger *slog.Logger
	schema any
}

func NewLLMAnalyzer(client llm.Client, model string, logger *slog.Logger) *LLMAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMAnalyzer{
		client: client,
		model:  model,
		logger: logger.With("component", "vision"),
		schema: llm.SchemaFor(&analysisPayload{}),
	}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, img models.Image, query string) (*models.DiagramAnalysis, error) {
	if len(img.Data) == 0 {
		return nil, models.AnalysisFailure("image is empty", nil)
	}

	temperature := 0.0
	raw, err := a.client.GenerateJSON(ctx, llm.Request{
		Model:       a.model,
		System:      systemPrompt,
		Prompt:      "User question: " + strings.TrimSpace(query),
		Images:      []models.Image{img},
		Schema:      a.schema,
		SchemaName:  "diagram_analysis",
		Temperature: &temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.Canceled("vision", ctx.Err())
		}
		return nil, models.AnalysisFailure("vision model unavailable", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal(llm.ExtractJSON(raw), &payload); err != nil {
		return nil, models.AnalysisFailure("vision model returned malformed output", err)
	}

	analysis := Sanitize(payload.toAnalysis())
	for _, rel := range analysis.DroppedRelations {
		a.logger.WarnContext(ctx, "dropped relation with unknown endpoint",
			"source", rel.Source, "target", rel.Target, "kind", rel.Kind)
	}
	if len(analysis.Entities) == 0 {
		return nil, models.AnalysisFailure("no entities detected in diagram", nil)
	}

	a.logger.InfoContext(ctx, "diagram analyzed",
		"entities", len(analysis.Entities),
		"relations", len(analysis.Relations),
		"dropped", len(analysis.DroppedRelations))
	return analysis, nil
}

func (p analysisPayload) toAnalysis() *models.DiagramAnalysis {
	analysis := &models.DiagramAnalysis{ReplyDraft: p.Reply}
	for _, e := range p.Entities {
		entity := models.Entity{Label: e.Label, Type: models.EntityType(e.Type)}
		if len(e.BoundingBox) == 4 {
			bb := models.BoundingBox{e.BoundingBox[0], e.BoundingBox[1], e.BoundingBox[2], e.BoundingBox[3]}
			entity.BoundingBox = &bb
		}
		analysis.Entities = append(analysis.Entities, entity)
	}
	for _, r := range p.Relations {
		analysis.Relations = append(analysis.Relations, models.Relation{
			Source:    r.Source,
			Target:    r.Target,
			Kind:      r.Kind,
			Direction: models.Direction(r.Direction),
		})
	}
	return analysis
}

// String renders an analysis compactly for prompts and logs.
func String(a *models.DiagramAnalysis) string {
	var b strings.Builder
	for _, e := range a.Entities {
		fmt.Fprintf(&b, "- %s (%s)\n", e.Label, e.Type)
	}
	for _, r := range a.Relations {
		arrow := "->"
		if r.Direction == models.DirectionBi {
			arrow = "<->"
		}
		fmt.Fprintf(&b, "- %s %s %s [%s]\n", r.Source, arrow, r.Target, r.Kind)
	}
	return b.String()
}
