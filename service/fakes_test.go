package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"volleyref-backend/grounding"
	"volleyref-backend/llm"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"
)

type staticEmbedder struct {
	err error
}

func (e staticEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func (e staticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fixedStore returns the same ranked chunks for every query
type fixedStore struct {
	chunks []models.RetrievedChunk
}

func (s fixedStore) NearestNeighbors(_ context.Context, _ []float32, k int) ([]models.RetrievedChunk, error) {
	if len(s.chunks) > k {
		return s.chunks[:k], nil
	}
	return s.chunks, nil
}

// recordingGenerator replays responses, repeating the last one
type recordingGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	messages  [][]llm.Message
	models    []string
	opts      []llm.Options
}

func (g *recordingGenerator) Complete(_ context.Context, msgs []llm.Message, model string, opts llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.messages = append(g.messages, msgs)
	g.models = append(g.models, model)
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	return g.responses[min(i, len(g.responses)-1)], nil
}

func noWait(context.Context, time.Duration) error { return nil }

func newEngine(chunks []models.RetrievedChunk, embedErr error, gen llm.Generator) *grounding.Engine {
	r := retrieval.New(staticEmbedder{err: embedErr}, fixedStore{chunks: chunks})
	return grounding.NewEngine(r, gen, grounding.WithSleep(noWait))
}

var errEmbeddingDown = errors.New("embedding endpoint unreachable")

// queryRecorder is a searcher that records queries and finds one snippet
type queryRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (q *queryRecorder) Search(_ context.Context, query string, _ int) ([]models.RetrievedChunk, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, query)
	return []models.RetrievedChunk{netTouchSnippet}, nil
}

func (q *queryRecorder) SearchTopics(ctx context.Context, topics []string, k int) ([]models.RetrievedChunk, error) {
	var out []models.RetrievedChunk
	for _, t := range topics {
		res, _ := q.Search(ctx, t, k)
		out = append(out, res...)
	}
	return out, nil
}

func newEngineWithSearcher(s grounding.Searcher, gen llm.Generator) *grounding.Engine {
	return grounding.NewEngine(s, gen, grounding.WithSleep(noWait))
}
