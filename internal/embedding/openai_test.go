package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.5, 0.25]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer server.Close()

	e := NewOpenAIEmbedder("key", server.URL+"/v1/", "", 2)
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.25}}, vecs)
}
