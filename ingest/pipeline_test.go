package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"volleyref-backend/chunker"
	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	batches [][]string
	err     error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memoryStore struct {
	rulebookID uuid.UUID
	chunks     []models.RuleChunk
	err        error
}

func (s *memoryStore) ReplaceForRulebook(_ context.Context, id uuid.UUID, chunks []models.RuleChunk) error {
	if s.err != nil {
		return s.err
	}
	s.rulebookID = id
	s.chunks = chunks
	return nil
}

func document(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("rule%d", i)
	}
	return strings.Join(w, " ")
}

func TestIngestEmbedsInBatches(t *testing.T) {
	c, err := chunker.New(10, 2)
	require.NoError(t, err)
	emb := &countingEmbedder{}
	store := &memoryStore{}
	p := NewPipeline(c, emb, store, WithBatchSize(3))

	var events []string
	id := uuid.New()
	n, err := p.Ingest(context.Background(), id, document(60), func(step string, status models.IngestionStatus, _ string) {
		events = append(events, step+":"+string(status))
	})
	require.NoError(t, err)

	assert.Equal(t, c.Count(60), n)
	assert.Len(t, store.chunks, n)
	assert.Equal(t, id, store.rulebookID)
	require.Len(t, emb.batches, (n+2)/3)
	assert.Len(t, emb.batches[0], 3)

	for i, ch := range store.chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, i*8, ch.SourceOffset)
		assert.Equal(t, float32(len(ch.Text)), ch.Embedding[0])
	}
	assert.Equal(t, "store:completed", events[len(events)-1])
}

func TestIngestEmptyText(t *testing.T) {
	p := NewPipeline(chunker.Default(), &countingEmbedder{}, &memoryStore{})
	_, err := p.Ingest(context.Background(), uuid.New(), "  \n ", nil)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestIngestPropagatesFailures(t *testing.T) {
	embedErr := errors.New("quota exceeded")
	p := NewPipeline(chunker.Default(), &countingEmbedder{err: embedErr}, &memoryStore{})

	var failed string
	_, err := p.Ingest(context.Background(), uuid.New(), document(5), func(step string, status models.IngestionStatus, _ string) {
		if status == models.IngestionFailed {
			failed = step
		}
	})
	assert.ErrorIs(t, err, embedErr)
	assert.Equal(t, models.StepEmbed, failed)

	storeErr := errors.New("tx aborted")
	p = NewPipeline(chunker.Default(), &countingEmbedder{}, &memoryStore{err: storeErr})
	_, err = p.Ingest(context.Background(), uuid.New(), document(5), nil)
	assert.ErrorIs(t, err, storeErr)
}
