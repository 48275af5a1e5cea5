package vision

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_DropsDanglingRelations(t *testing.T) {
	in := &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "User", Type: "actor"},
			{Label: "API", Type: "Interface"},
		},
		Relations: []models.Relation{
			{Source: "User", Target: "API", Kind: "calls"},
			{Source: "API", Target: "Cache", Kind: "reads"},
		},
	}

	out := Sanitize(in)

	require.Len(t, out.Relations, 1)
	assert.Equal(t, models.Relation{Source: "User", Target: "API", Kind: "calls", Direction: models.DirectionUni}, out.Relations[0])
	require.Len(t, out.DroppedRelations, 1)
	assert.Equal(t, "Cache", out.DroppedRelations[0].Target)
	assert.Equal(t, models.EntityActor, out.Entities[0].Type)
}

func TestSanitize_NormalizesLabelsAndKinds(t *testing.T) {
	in := &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "  Orders   DB ", Type: "database"},
			{Label: "Orders DB", Type: "Database"},
			{Label: "   ", Type: "Process"},
			{Label: "Worker", Type: "mystery"},
		},
		Relations: []models.Relation{
			{Source: "worker", Target: "orders db", Kind: "Writes To", Direction: "bidirectional"},
			{Source: "Worker", Target: "Orders DB", Kind: "writes to", Direction: "bi"},
			{Source: "Worker", Target: "Orders DB"},
		},
		ReplyDraft: "  two boxes \n",
	}

	out := Sanitize(in)

	assert.Equal(t, []models.Entity{
		{Label: "Orders DB", Type: models.EntityDatabase},
		{Label: "Worker", Type: models.EntityOther},
	}, out.Entities)
	assert.Equal(t, []models.Relation{
		{Source: "Worker", Target: "Orders DB", Kind: "writes-to", Direction: models.DirectionBi},
		{Source: "Worker", Target: "Orders DB", Kind: defaultRelationKind, Direction: models.DirectionUni},
	}, out.Relations)
	assert.Equal(t, "two boxes", out.ReplyDraft)
	assert.Empty(t, out.DroppedRelations)
}

func TestSanitize_ClearsInvalidBoundingBoxes(t *testing.T) {
	good := models.BoundingBox{10, 10, 50, 40}
	inverted := models.BoundingBox{50, 10, 10, 40}
	negative := models.BoundingBox{-1, 0, 5, 5}
	in := &models.DiagramAnalysis{Entities: []models.Entity{
		{Label: "A", Type: "Process", BoundingBox: &good},
		{Label: "B", Type: "Process", BoundingBox: &inverted},
		{Label: "C", Type: "Process", BoundingBox: &negative},
	}}

	out := Sanitize(in)

	require.NotNil(t, out.Entities[0].BoundingBox)
	assert.Equal(t, good, *out.Entities[0].BoundingBox)
	assert.Nil(t, out.Entities[1].BoundingBox)
	assert.Nil(t, out.Entities[2].BoundingBox)
}

func TestSanitize_DoesNotModifyInput(t *testing.T) {
	in := &models.DiagramAnalysis{
		Entities:  []models.Entity{{Label: " A ", Type: "db"}},
		Relations: []models.Relation{{Source: "A", Target: "Z"}},
	}
	Sanitize(in)
	assert.Equal(t, " A ", in.Entities[0].Label)
	assert.Empty(t, in.DroppedRelations)
}

// Every emitted relation must reference entities of the same analysis,
// whatever the model returns.
func TestSanitize_NeverEmitsDanglingRelations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := []string{"User", "API", "Orders DB", "Queue", "Worker", "orders db", "ghost", ""}
	types := []string{"Actor", "Process", "Database", "Interface", "Other", "weird"}

	for i := 0; i < 500; i++ {
		in := &models.DiagramAnalysis{}
		for n := rng.Intn(6); n > 0; n-- {
			in.Entities = append(in.Entities, models.Entity{
				Label: labels[rng.Intn(len(labels)-2)],
				Type:  models.EntityType(types[rng.Intn(len(types))]),
			})
		}
		for n := rng.Intn(10); n > 0; n-- {
			in.Relations = append(in.Relations, models.Relation{
				Source: labels[rng.Intn(len(labels))],
				Target: labels[rng.Intn(len(labels))],
				Kind:   "calls",
			})
		}

		out := Sanitize(in)

		present := map[string]bool{}
		for _, e := range out.Entities {
			present[e.Label] = true
		}
		for _, r := range out.Relations {
			assert.True(t, present[r.Source], fmt.Sprintf("case %d: dangling source %q", i, r.Source))
			assert.True(t, present[r.Target], fmt.Sprintf("case %d: dangling target %q", i, r.Target))
		}
		assert.LessOrEqual(t, len(out.Relations)+len(out.DroppedRelations), len(in.Relations))
	}
}
