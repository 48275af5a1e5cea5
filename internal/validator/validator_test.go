package validator

import (
	"context"
	"testing"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userOrdersDiagram() *models.DiagramAnalysis {
	return &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "User", Type: models.EntityActor},
			{Label: "Orders DB", Type: models.EntityDatabase},
		},
		Relations: []models.Relation{
			{Source: "User", Target: "Orders DB", Kind: "writes-to", Direction: models.DirectionUni},
		},
	}
}

func TestValidate_MissingActorIsAdvisory(t *testing.T) {
	artifact := &models.GeneratedArtifact{Files: map[string]string{
		"store.go": "package store\n\ntype OrdersDB struct{}\n\nfunc (d *OrdersDB) Insert(id string) error { return nil }\n",
	}}

	report := New().Validate(context.Background(), userOrdersDiagram(), artifact)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, models.SeverityAdvisory, d.Severity)
	assert.Equal(t, models.SubjectEntity, d.Subject)
	assert.Equal(t, "User", d.Entity.Label)
	assert.Empty(t, report.Blocking())
	assert.Equal(t, models.VerdictPass, report.Verdict)
}

func TestValidate_MissingDatabaseBlocks(t *testing.T) {
	artifact := &models.GeneratedArtifact{Files: map[string]string{
		"main.go": "package main\n\nfunc handleUser(name string) {}\n",
	}}

	report := New().Validate(context.Background(), userOrdersDiagram(), artifact)

	blocking := report.Blocking()
	require.Len(t, blocking, 1)
	assert.Equal(t, "Orders DB", blocking[0].Entity.Label)
	assert.Equal(t, models.VerdictFail, report.Verdict)
}

func TestValidate_TokenizedMatches(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{name: "snake case", path: "repo.py", content: "orders_db = connect()\n"},
		{name: "split identifiers", path: "repo.ts", content: "const db = new Pool();\nexport function saveOrders(db: Pool) {}\n"},
		{name: "file name", path: "orders/db.sql", content: "CREATE TABLE items (id INT);\n"},
		{name: "comment only", path: "notes.go", content: "package notes\n\n// uses the Orders DB\n"},
	}

	diagram := &models.DiagramAnalysis{Entities: []models.Entity{{Label: "Orders DB", Type: models.EntityDatabase}}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := &models.GeneratedArtifact{Files: map[string]string{tt.path: tt.content}}
			report := New().Validate(context.Background(), diagram, artifact)
			assert.Empty(t, report.Discrepancies)
			assert.True(t, report.Passed())
		})
	}
}

func TestValidate_RelationCoOccurrence(t *testing.T) {
	diagram := &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "Order Service", Type: models.EntityProcess},
			{Label: "Payments API", Type: models.EntityInterface},
		},
		Relations: []models.Relation{{Source: "Order Service", Target: "Payments API", Kind: "calls"}},
	}
	split := map[string]string{
		"order_service.go": "package svc\n\ntype OrderService struct{}\n",
		"payments.go":      "package svc\n\ntype PaymentsAPI struct{}\n",
	}

	t.Run("separate files", func(t *testing.T) {
		report := New().Validate(context.Background(), diagram, &models.GeneratedArtifact{Files: split})
		require.Len(t, report.Discrepancies, 1)
		assert.Equal(t, models.SubjectRelation, report.Discrepancies[0].Subject)
		assert.Equal(t, models.SeverityAdvisory, report.Discrepancies[0].Severity)
		assert.True(t, report.Passed())
	})

	t.Run("described in summary", func(t *testing.T) {
		artifact := &models.GeneratedArtifact{Files: split, Summary: "OrderService calls the PaymentsAPI client."}
		report := New().Validate(context.Background(), diagram, artifact)
		assert.Empty(t, report.Discrepancies)
	})

	t.Run("same file", func(t *testing.T) {
		artifact := &models.GeneratedArtifact{Files: map[string]string{
			"svc.go": "package svc\n\ntype OrderService struct{ payments *PaymentsAPI }\n",
		}}
		report := New().Validate(context.Background(), diagram, artifact)
		assert.Empty(t, report.Discrepancies)
	})
}

func TestValidate_EmptyArtifact(t *testing.T) {
	report := New().Validate(context.Background(), userOrdersDiagram(), &models.GeneratedArtifact{})

	require.Len(t, report.Discrepancies, 2)
	assert.Equal(t, models.VerdictFail, report.Verdict)
}

func TestValidate_SymbolOnlyLabelSkipsRelations(t *testing.T) {
	analysis := &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "→", Type: models.EntityOther},
			{Label: "Worker", Type: models.EntityProcess},
		},
		Relations: []models.Relation{{Source: "→", Target: "Worker", Kind: "triggers"}},
	}

	report := New().Validate(context.Background(), analysis, &models.GeneratedArtifact{})
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, models.SubjectEntity, report.Discrepancies[0].Subject)
	assert.Equal(t, "Worker", report.Discrepancies[0].Entity.Label)

	report = New().Validate(context.Background(), analysis, &models.GeneratedArtifact{Files: map[string]string{
		"worker.go": "package worker\n\nfunc Run() {}\n",
	}})
	assert.Empty(t, report.Discrepancies)
}

func TestValidate_Idempotent(t *testing.T) {
	artifact := &models.GeneratedArtifact{
		Files: map[string]string{
			"b.go": "package b\n\ntype Worker struct{}\n",
			"a.py": "class Queue:\n    pass\n",
			"c.md": "User docs",
		},
		Summary: "Worker drains the Queue.",
	}
	diagram := &models.DiagramAnalysis{
		Entities: []models.Entity{
			{Label: "Worker", Type: models.EntityProcess},
			{Label: "Queue", Type: models.EntityDatabase},
			{Label: "Archive", Type: models.EntityDatabase},
			{Label: "Admin", Type: models.EntityActor},
		},
		Relations: []models.Relation{
			{Source: "Worker", Target: "Queue", Kind: "reads"},
			{Source: "Admin", Target: "Archive", Kind: "reads"},
			{Source: "Worker", Target: "Ghost", Kind: "calls"},
		},
	}

	v := New()
	first := v.Validate(context.Background(), diagram, artifact)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, v.Validate(context.Background(), diagram, artifact))
	}
	assert.Len(t, first.Blocking(), 1)
	assert.Len(t, first.Discrepancies, 3)
}
