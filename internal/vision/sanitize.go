package vision

import (
	"math"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/models"
)

const defaultRelationKind = "relates-to"

// Sanitize normalizes a raw analysis: entity labels are trimmed, types mapped
// onto the closed set, duplicates and empty labels removed, and invalid
// bounding boxes cleared. Relations whose endpoints do not resolve to an
// entity are moved to DroppedRelations; the rest are rewritten to the
// canonical entity labels. The input is not modified.
func Sanitize(in *models.DiagramAnalysis) *models.DiagramAnalysis {
	out := &models.DiagramAnalysis{
		Entities:   []models.Entity{},
		Relations:  []models.Relation{},
		ReplyDraft: strings.TrimSpace(in.ReplyDraft),
	}

	seen := make(map[string]bool)
	for _, e := range in.Entities {
		label := strings.Join(strings.Fields(e.Label), " ")
		if label == "" {
			continue
		}
		entity := models.Entity{
			Label:       label,
			Type:        models.ParseEntityType(string(e.Type)),
			BoundingBox: validBox(e.BoundingBox),
		}
		if seen[entity.Key()] {
			continue
		}
		seen[entity.Key()] = true
		out.Entities = append(out.Entities, entity)
	}

	seenRel := make(map[models.Relation]bool)
	for _, r := range in.Relations {
		src, okSrc := out.EntityByLabel(strings.Join(strings.Fields(r.Source), " "))
		dst, okDst := out.EntityByLabel(strings.Join(strings.Fields(r.Target), " "))
		if !okSrc || !okDst {
			out.DroppedRelations = append(out.DroppedRelations, r)
			continue
		}
		rel := models.Relation{
			Source:    src.Label,
			Target:    dst.Label,
			Kind:      normalizeKind(r.Kind),
			Direction: normalizeDirection(r.Direction),
		}
		if seenRel[rel] {
			continue
		}
		seenRel[rel] = true
		out.Relations = append(out.Relations, rel)
	}
	return out
}

func validBox(bb *models.BoundingBox) *models.BoundingBox {
	if bb == nil {
		return nil
	}
	for _, v := range bb {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	if bb[2] < bb[0] || bb[3] < bb[1] {
		return nil
	}
	cp := *bb
	return &cp
}

func normalizeKind(kind string) string {
	kind = strings.ToLower(strings.Join(strings.Fields(kind), "-"))
	if kind == "" {
		return defaultRelationKind
	}
	return kind
}

func normalizeDirection(d models.Direction) models.Direction {
	switch strings.ToLower(strings.TrimSpace(string(d))) {
	case "bi", "bidirectional", "both":
		return models.DirectionBi
	}
	return models.DirectionUni
}
