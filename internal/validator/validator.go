// Package validator checks a generated artifact against the diagram it was
// generated from.
//
// The check is structural: an entity counts as represented when its label
// appears in a file, either as a substring of the file's normalized text or
// as a set of identifier terms ("Orders DB" matches OrdersDB, orders_db and
// ordersRepo.db). Missing Database entities block; everything else advises.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/pkg/tokenize"
	"github.com/dpolishuk/sketch2code/pkg/treesitter"
)

// Validator is stateless and safe for concurrent use.
type Validator struct{}

func New() *Validator { return &Validator{} }

// document is one searchable body of text: a generated file or the summary.
type document struct {
	name       string
	normalized string
	terms      map[string]struct{}
}

func (d document) mentions(l label) bool {
	if l.normalized == "" {
		return false
	}
	if strings.Contains(d.normalized, l.normalized) {
		return true
	}
	for _, t := range l.terms {
		if _, ok := d.terms[t]; !ok {
			return false
		}
	}
	return len(l.terms) > 0
}

type label struct {
	normalized string
	terms      []string
}

func newLabel(s string) label {
	return label{normalized: tokenize.Normalize(s), terms: tokenize.Terms(s)}
}

// Validate is deterministic: the same analysis and artifact always produce
// the same report, with entity findings first in entity order and relation
// findings after in relation order.
func (v *Validator) Validate(ctx context.Context, analysis *models.DiagramAnalysis, artifact *models.GeneratedArtifact) models.ValidationReport {
	docs := v.documents(ctx, artifact)
	summary := document{
		name:       "summary",
		normalized: tokenize.Normalize(artifact.Summary),
		terms:      tokenize.Set(tokenize.Terms(artifact.Summary)),
	}

	var discrepancies []models.Discrepancy
	represented := make(map[string][]int, len(analysis.Entities))
	// labels made only of symbols have nothing to search for and are not checked
	unchecked := make(map[string]bool)

	for _, entity := range analysis.Entities {
		l := newLabel(entity.Label)
		if l.normalized == "" {
			unchecked[entity.Key()] = true
			continue
		}

		var found []int
		for i, d := range docs {
			if d.mentions(l) {
				found = append(found, i)
			}
		}
		if len(found) > 0 {
			represented[entity.Key()] = found
			continue
		}

		e := entity
		severity := models.SeverityAdvisory
		if entity.Type == models.EntityDatabase {
			severity = models.SeverityBlocking
		}
		discrepancies = append(discrepancies, models.Discrepancy{
			Subject:     models.SubjectEntity,
			Entity:      &e,
			Description: fmt.Sprintf("%s %q is not referenced in any generated file", strings.ToLower(string(entity.Type)), entity.Label),
			Severity:    severity,
		})
	}

	for _, rel := range analysis.Relations {
		r := rel
		src, okSrc := analysis.EntityByLabel(rel.Source)
		dst, okDst := analysis.EntityByLabel(rel.Target)
		if !okSrc || !okDst {
			discrepancies = append(discrepancies, models.Discrepancy{
				Subject:     models.SubjectRelation,
				Relation:    &r,
				Description: fmt.Sprintf("relation %s -> %s references an unknown entity", rel.Source, rel.Target),
				Severity:    models.SeverityAdvisory,
			})
			continue
		}

		if unchecked[src.Key()] || unchecked[dst.Key()] {
			continue
		}
		srcFiles, srcOK := represented[src.Key()]
		dstFiles, dstOK := represented[dst.Key()]
		if !srcOK || !dstOK {
			continue
		}
		if overlaps(srcFiles, dstFiles) {
			continue
		}
		if summary.mentions(newLabel(src.Label)) && summary.mentions(newLabel(dst.Label)) {
			continue
		}
		discrepancies = append(discrepancies, models.Discrepancy{
			Subject:     models.SubjectRelation,
			Relation:    &r,
			Description: fmt.Sprintf("%s and %s (%s) never appear together in a file or in the summary", rel.Source, rel.Target, rel.Kind),
			Severity:    models.SeverityAdvisory,
		})
	}

	return models.NewValidationReport(discrepancies)
}

// documents indexes every generated file in path order. Identifier terms come
// from tree-sitter when a grammar exists for the file, otherwise from
// identifier-like words of the raw text.
func (v *Validator) documents(ctx context.Context, artifact *models.GeneratedArtifact) []document {
	paths := artifact.Paths()
	docs := make([]document, 0, len(paths))

	var parser *treesitter.Parser
	defer func() {
		if parser != nil {
			parser.Close()
		}
	}()

	for _, p := range paths {
		content := artifact.Files[p]
		terms := tokenize.Terms(content)

		lang := treesitter.DetectLanguage(p, []byte(content))
		if treesitter.Supported(lang) {
			if parser == nil {
				parser = treesitter.NewParser()
			}
			if idents, err := parser.Identifiers(ctx, []byte(content), lang); err == nil && len(idents) > 0 {
				terms = tokenize.Terms(strings.Join(idents, " "))
			}
		}

		// the file name often carries the component name (orders_db.go)
		terms = append(terms, tokenize.Terms(p)...)

		docs = append(docs, document{
			name:       p,
			normalized: tokenize.Normalize(p + "\n" + content),
			terms:      tokenize.Set(terms),
		})
	}
	return docs
}

func overlaps(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
