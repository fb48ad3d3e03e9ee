// Package retrieval finds the rule chunks most similar to a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"volleyref-backend/embedding"
	"volleyref-backend/metrics"
	"volleyref-backend/models"

	"golang.org/x/sync/errgroup"
)

// ErrRetrievalUnavailable is returned when the query cannot be embedded or
// the vector store cannot be searched
var ErrRetrievalUnavailable = errors.New("rule retrieval unavailable")

// VectorStore returns the k nearest chunks to vector, most similar first
type VectorStore interface {
	NearestNeighbors(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error)
}

// Retriever embeds queries and delegates ranking to a VectorStore
type Retriever struct {
	embedder embedding.Embedder
	store    VectorStore
	metrics  *metrics.Metrics
}

// Option configures a Retriever
type Option func(*Retriever)

// WithMetrics records retrieval latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) {
		r.metrics = m
	}
}

// New creates a retriever
func New(embedder embedding.Embedder, store VectorStore, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns at most k chunks in the order the store ranked them. No
// matches is an empty slice and a nil error.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []models.RetrievedChunk{}, nil
	}
	defer r.metrics.ObserveRetrieval(time.Now())

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", ErrRetrievalUnavailable, err)
	}

	results, err := r.store.NearestNeighbors(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search rule index: %w", ErrRetrievalUnavailable, err)
	}
	if results == nil {
		return []models.RetrievedChunk{}, nil
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchTopics runs one Search per topic concurrently and concatenates the
// results in topic order. Any failed search fails the whole batch.
func (r *Retriever) SearchTopics(ctx context.Context, topics []string, k int) ([]models.RetrievedChunk, error) {
	perTopic := make([][]models.RetrievedChunk, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range topics {
		g.Go(func() error {
			res, err := r.Search(gctx, topic, k)
			if err != nil {
				return fmt.Errorf("topic %q: %w", topic, err)
			}
			perTopic[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]models.RetrievedChunk, 0, len(topics)*k)
	for _, res := range perTopic {
		all = append(all, res...)
	}
	return all, nil
}
