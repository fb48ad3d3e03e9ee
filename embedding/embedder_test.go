package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// newOpenAIServer answers with one-hot style vectors derived from input
// position, in reverse order so index mapping is exercised.
func newOpenAIServer(t *testing.T, seen *[]embeddingsRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		*seen = append(*seen, req)
		mu.Unlock()

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
}

func newTestOpenAIEmbedder(url string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = url + "/v1"
	return NewOpenAIEmbedderWithConfig(cfg, "", 1536)
}

func TestOpenAIEmbedBatchPreservesOrder(t *testing.T) {
	var seen []embeddingsRequest
	srv := newOpenAIServer(t, &seen)
	defer srv.Close()

	e := newTestOpenAIEmbedder(srv.URL)
	texts := []string{"a", "bbb", "cc\nline"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[1])
	}

	require.Len(t, seen, 1)
	assert.Equal(t, DefaultOpenAIModel, seen[0].Model)
	assert.Equal(t, 1536, seen[0].Dimensions)
	for _, in := range seen[0].Input {
		assert.NotContains(t, in, "\n")
	}
	assert.Equal(t, "cc line", seen[0].Input[2])
}

func TestOpenAIEmbedSingle(t *testing.T) {
	var seen []embeddingsRequest
	srv := newOpenAIServer(t, &seen)
	defer srv.Close()

	vec, err := newTestOpenAIEmbedder(srv.URL).Embed(context.Background(), "net\ntouch")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 0}, vec)
	assert.Equal(t, []string{"net touch"}, seen[0].Input)
}

func TestOpenAIEmbedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestOpenAIEmbedder(srv.URL).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestOpenAIEmbedBatchEmpty(t *testing.T) {
	vecs, err := newTestOpenAIEmbedder("http://127.0.0.1:0").EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "a b  c", flatten("a\nb\n\nc"))
	assert.Equal(t, []string{"x y", "z"}, flattenAll([]string{"x\ny", "z"}))
	assert.False(t, strings.Contains(flatten("\n"), "\n"))
}
