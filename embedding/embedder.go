// Package embedding turns rule text and queries into vectors.
package embedding

import (
	"context"
	"errors"
	"strings"
)

// ErrEmbeddingUnavailable wraps every failure reaching the embedding service
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedder produces one vector per input text. EmbedBatch preserves input
// order. Implementations do not retry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// flatten replaces newlines with spaces before text is sent for embedding
func flatten(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

func flattenAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = flatten(t)
	}
	return out
}
