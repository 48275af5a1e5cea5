package coder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/models"
)

const systemPrompt = `You are a senior engineer turning an architecture diagram into a runnable starter project.
Every entity in the diagram must appear in the code as a type, function, module or
configuration entry named after its label. Every Database entity needs a concrete
data-access component. Connected entities should reference each other in the same file
where practical. Reference snippets show the preferred style; adapt them, do not copy
unrelated code. Respond with a single JSON object: {"files":[{"path","content"}],"summary"}.
The summary explains the generated structure and how the components call each other.`

// Constraints turns a prior validation report into corrective instructions.
// Blocking discrepancies become hard requirements, advisory ones hints.
func Constraints(report *models.ValidationReport) (required, hints []string) {
	if report == nil {
		return nil, nil
	}
	for _, d := range report.Discrepancies {
		line := constraintFor(d)
		if line == "" {
			continue
		}
		if d.Severity == models.SeverityBlocking {
			required = append(required, line)
		} else {
			hints = append(hints, line)
		}
	}
	return required, hints
}

func constraintFor(d models.Discrepancy) string {
	switch {
	case d.Entity != nil:
		return fmt.Sprintf("ensure entity %s of type %s is represented", d.Entity.Label, d.Entity.Type)
	case d.Relation != nil:
		return fmt.Sprintf("ensure %s and %s are connected (%s) in the same file or described in the summary",
			d.Relation.Source, d.Relation.Target, d.Relation.Kind)
	}
	return d.Description
}

type diagramJSON struct {
	Entities  []models.Entity   `json:"entities"`
	Relations []models.Relation `json:"relations"`
}

// buildPrompt assembles the user prompt. Snippets are added in rank order
// until the next one would exceed budget tokens.
func (c *LLMCoder) buildPrompt(in Input) (string, int) {
	var b strings.Builder

	b.WriteString("## Request\n")
	b.WriteString(strings.TrimSpace(in.Query))
	b.WriteString("\n\n## Diagram\n")
	diagram, _ := json.MarshalIndent(diagramJSON{
		Entities:  in.Analysis.Entities,
		Relations: in.Analysis.Relations,
	}, "", "  ")
	b.Write(diagram)
	b.WriteString("\n")

	included := 0
	if len(in.Retrieval.Items) > 0 {
		used := 0
		var snippets strings.Builder
		for _, item := range in.Retrieval.Items {
			block := fmt.Sprintf("### %s (score %.2f)\n```%s\n%s\n```\n",
				item.Snippet.ID, item.Score, item.Snippet.Language, item.Snippet.Content)
			cost := c.counter.CountTokens(block)
			if c.budget > 0 && used+cost > c.budget {
				break
			}
			used += cost
			included++
			snippets.WriteString(block)
		}
		if included > 0 {
			b.WriteString("\n## Reference snippets\n")
			b.WriteString(snippets.String())
		}
	}

	required, hints := Constraints(in.PriorReport)
	if len(required) > 0 {
		b.WriteString("\n## Previous attempt was rejected. You must:\n")
		for _, r := range required {
			b.WriteString("- " + r + "\n")
		}
	}
	if len(hints) > 0 {
		b.WriteString("\n## Also consider:\n")
		for _, h := range hints {
			b.WriteString("- " + h + "\n")
		}
	}
	return b.String(), included
}
