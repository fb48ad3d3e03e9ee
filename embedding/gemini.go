package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

const DefaultGeminiModel = "text-embedding-004"

// geminiBatchLimit is the maximum number of contents per batch request
const geminiBatchLimit = 100

// GeminiEmbedder embeds with a Gemini embedding model. Documents and queries
// use different task types.
type GeminiEmbedder struct {
	query    *genai.EmbeddingModel
	document *genai.EmbeddingModel
}

// NewGeminiEmbedder creates an embedder for rule documents and queries
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiModel
	}
	query := client.EmbeddingModel(model)
	query.TaskType = genai.TaskTypeRetrievalQuery
	document := client.EmbeddingModel(model)
	document.TaskType = genai.TaskTypeRetrievalDocument
	return &GeminiEmbedder{query: query, document: document}
}

// Embed embeds a query
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.query.EmbedContent(ctx, genai.Text(flatten(text)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if res == nil || res.Embedding == nil {
		return nil, fmt.Errorf("%w: empty embedding response", ErrEmbeddingUnavailable)
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds rule documents in batches of 100
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))

		batch := e.document.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(flatten(t)))
		}
		res, err := e.document.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
		if res == nil {
			return nil, fmt.Errorf("%w: empty batch response", ErrEmbeddingUnavailable)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingUnavailable, end-start, len(res.Embeddings))
		}
		vecs, err := embeddingValues(res.Embeddings)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func embeddingValues(embs []*genai.ContentEmbedding) ([][]float32, error) {
	out := make([][]float32, len(embs))
	for i, emb := range embs {
		if emb == nil {
			return nil, fmt.Errorf("%w: empty embedding at position %d", ErrEmbeddingUnavailable, i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
