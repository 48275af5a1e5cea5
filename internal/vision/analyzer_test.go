package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	out  string
	err  error
	last llm.Request
}

func (s *stubClient) GenerateJSON(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.out), nil
}

func (s *stubClient) Name() string { return "stub" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func TestLLMAnalyzer_Analyze(t *testing.T) {
	client := &stubClient{out: "```json\n" + `{
		"entities": [
			{"label": "User", "type": "Actor"},
			{"label": "API", "type": "Interface", "boundingBox": [1, 2, 30, 40]},
			{"label": "Orders DB", "type": "Database"}
		],
		"relations": [
			{"source": "User", "target": "API", "kind": "calls"},
			{"source": "API", "target": "Orders DB", "kind": "stores"},
			{"source": "API", "target": "Billing", "kind": "calls"}
		],
		"reply": "A user calls an API that stores orders."
	}` + "\n```"}
	analyzer := NewLLMAnalyzer(client, "vision-model", quietLogger())

	img := models.Image{Data: testPNG(t), MIMEType: "image/png"}
	analysis, err := analyzer.Analyze(context.Background(), img, "  what does this do? ")
	require.NoError(t, err)

	assert.Len(t, analysis.Entities, 3)
	assert.Len(t, analysis.Relations, 2)
	assert.Len(t, analysis.DroppedRelations, 1)
	assert.Equal(t, "A user calls an API that stores orders.", analysis.ReplyDraft)
	require.NotNil(t, analysis.Entities[1].BoundingBox)
	assert.Equal(t, models.BoundingBox{1, 2, 30, 40}, *analysis.Entities[1].BoundingBox)

	assert.Equal(t, "vision-model", client.last.Model)
	assert.Equal(t, "User question: what does this do?", client.last.Prompt)
	require.Len(t, client.last.Images, 1)
	assert.NotNil(t, client.last.Schema)
}

func TestLLMAnalyzer_Failures(t *testing.T) {
	img := models.Image{Data: []byte{1}, MIMEType: "image/png"}

	tests := []struct {
		name   string
		client *stubClient
		img    models.Image
	}{
		{name: "collaborator down", client: &stubClient{err: errors.New("connection refused")}, img: img},
		{name: "malformed output", client: &stubClient{out: "I cannot read this image"}, img: img},
		{name: "no entities", client: &stubClient{out: `{"entities": [], "relations": [], "reply": ""}`}, img: img},
		{name: "empty image", client: &stubClient{out: `{}`}, img: models.Image{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMAnalyzer(tt.client, "m", quietLogger()).Analyze(context.Background(), tt.img, "q")
			require.Error(t, err)
			assert.Equal(t, models.KindAnalysis, models.KindOf(err))
		})
	}
}

func TestLLMAnalyzer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &stubClient{err: context.Canceled}
	_, err := NewLLMAnalyzer(client, "m", quietLogger()).Analyze(ctx, models.Image{Data: []byte{1}}, "q")
	assert.Equal(t, models.KindCanceled, models.KindOf(err))
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = DecodeImage([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUndecodableImage)

	_, err = DecodeImage(nil)
	assert.ErrorIs(t, err, ErrUndecodableImage)
}

func TestString(t *testing.T) {
	a := &models.DiagramAnalysis{
		Entities:  []models.Entity{{Label: "A", Type: models.EntityProcess}},
		Relations: []models.Relation{{Source: "A", Target: "A", Kind: "calls", Direction: models.DirectionBi}},
	}
	assert.Equal(t, "- A (Process)\n- A <-> A [calls]\n", String(a))
}
