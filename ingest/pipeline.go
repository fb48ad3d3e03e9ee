package ingest

import (
	"context"
	"fmt"

	"volleyref-backend/chunker"
	"volleyref-backend/embedding"
	"volleyref-backend/metrics"
	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
)

// DefaultBatchSize is how many chunks are embedded per request
const DefaultBatchSize = 100

// ChunkStore replaces every chunk of a rulebook atomically
type ChunkStore interface {
	ReplaceForRulebook(ctx context.Context, rulebookID uuid.UUID, chunks []models.RuleChunk) error
}

// ProgressFunc is told when a pipeline step changes state
type ProgressFunc func(step string, status models.IngestionStatus, detail string)

// Pipeline chunks, embeds and stores rulebook text
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	store     ChunkStore
	batchSize int
	metrics   *metrics.Metrics
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBatchSize overrides DefaultBatchSize
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMetrics counts ingested chunks
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline
func NewPipeline(c *chunker.Chunker, embedder embedding.Embedder, store ChunkStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		chunker:   c,
		embedder:  embedder,
		store:     store,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest replaces the chunks of rulebookID with the chunks of text and
// returns how many were stored. progress may be nil.
func (p *Pipeline) Ingest(ctx context.Context, rulebookID uuid.UUID, text string, progress ProgressFunc) (int, error) {
	if progress == nil {
		progress = func(string, models.IngestionStatus, string) {}
	}

	progress(models.StepChunk, models.IngestionInProgress, "")
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		progress(models.StepChunk, models.IngestionFailed, ErrNoText.Error())
		return 0, ErrNoText
	}
	progress(models.StepChunk, models.IngestionCompleted, fmt.Sprintf("%d chunks", len(pieces)))

	progress(models.StepEmbed, models.IngestionInProgress, "")
	chunks := make([]models.RuleChunk, len(pieces))
	for start := 0; start < len(pieces); start += p.batchSize {
		end := min(start+p.batchSize, len(pieces))

		texts := make([]string, end-start)
		for i, c := range pieces[start:end] {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			progress(models.StepEmbed, models.IngestionFailed, err.Error())
			return 0, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(texts) {
			err := fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
			progress(models.StepEmbed, models.IngestionFailed, err.Error())
			return 0, err
		}

		for i, v := range vectors {
			idx := start + i
			chunks[idx] = models.RuleChunk{
				RulebookID:   rulebookID,
				ChunkIndex:   idx,
				Text:         pieces[idx].Text,
				SourceOffset: pieces[idx].SourceOffset,
				Embedding:    v,
			}
		}
		logger.Debugw("embedded chunk batch", "rulebook_id", rulebookID.String(), "from", start, "to", end)
	}
	progress(models.StepEmbed, models.IngestionCompleted, fmt.Sprintf("%d embeddings", len(chunks)))

	progress(models.StepStore, models.IngestionInProgress, "")
	if err := p.store.ReplaceForRulebook(ctx, rulebookID, chunks); err != nil {
		progress(models.StepStore, models.IngestionFailed, err.Error())
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	progress(models.StepStore, models.IngestionCompleted, "")

	p.metrics.RecordIngested(len(chunks))
	logger.Infow("rulebook ingested", "rulebook_id", rulebookID.String(), "chunks", len(chunks))
	return len(chunks), nil
}
