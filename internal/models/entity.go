package models

import "strings"

type EntityType string

const (
	EntityActor     EntityType = "Actor"
	EntityProcess   EntityType = "Process"
	EntityDatabase  EntityType = "Database"
	EntityInterface EntityType = "Interface"
	EntityOther     EntityType = "Other"
)

// ParseEntityType maps a collaborator-supplied type name onto the closed set,
// falling back to EntityOther.
func ParseEntityType(s string) EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "actor", "user", "person":
		return EntityActor
	case "process", "service", "component":
		return EntityProcess
	case "database", "db", "datastore", "store":
		return EntityDatabase
	case "interface", "api", "endpoint":
		return EntityInterface
	default:
		return EntityOther
	}
}

// BoundingBox is [x1, y1, x2, y2] in image-pixel coordinates.
type BoundingBox [4]float64

type Entity struct {
	Label       string       `json:"label"`
	Type        EntityType   `json:"type"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// Key identifies an entity within one analysis.
func (e Entity) Key() string {
	return string(e.Type) + "\x00" + e.Label
}

type Direction string

const (
	DirectionUni Direction = "uni"
	DirectionBi  Direction = "bi"
)

type Relation struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Kind      string    `json:"kind"`
	Direction Direction `json:"direction,omitempty"`
}

// DiagramAnalysis is the structured interpretation of one diagram image.
// It is produced once per request and never mutated afterwards.
type DiagramAnalysis struct {
	Entities   []Entity   `json:"entities"`
	Relations  []Relation `json:"relations"`
	ReplyDraft string     `json:"replyDraft"`

	// Relations removed during sanitization because an endpoint did not resolve.
	DroppedRelations []Relation `json:"droppedRelations,omitempty"`
}

// EntityByLabel looks up an entity by exact label, then case-insensitively.
func (a *DiagramAnalysis) EntityByLabel(label string) (Entity, bool) {
	label = strings.TrimSpace(label)
	for _, e := range a.Entities {
		if e.Label == label {
			return e, true
		}
	}
	for _, e := range a.Entities {
		if strings.EqualFold(e.Label, label) {
			return e, true
		}
	}
	return Entity{}, false
}

// Image is a raw diagram payload with its detected media type.
type Image struct {
	Data     []byte
	MIMEType string
}
