package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func newCache(t *testing.T, next Embedder) (*CachedEmbedder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedEmbedder(next, client, "test-model", time.Hour), mr
}

func TestCachedEmbedHitsAfterFirstCall(t *testing.T) {
	inner := &countingEmbedder{}
	c, _ := newCache(t, inner)
	ctx := context.Background()

	first, err := c.Embed(ctx, "block")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "block")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedBatchEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c, _ := newCache(t, inner)
	ctx := context.Background()

	_, err := c.Embed(ctx, "bb")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"a", "bb", "cccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {4}}, vecs)
	require.Len(t, inner.inputs, 2)
	assert.Equal(t, []string{"a", "cccc"}, inner.inputs[1])

	_, err = c.EmbedBatch(ctx, []string{"cccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedSetsTTL(t *testing.T) {
	c, mr := newCache(t, &countingEmbedder{})
	_, err := c.Embed(context.Background(), "rotation")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestCachedEmbedFallsBackWhenRedisDown(t *testing.T) {
	inner := &countingEmbedder{}
	c, mr := newCache(t, inner)
	mr.Close()

	vec, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, vec)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestCachedEmbedPropagatesProviderError(t *testing.T) {
	inner := &countingEmbedder{err: errors.Join(ErrEmbeddingUnavailable, errors.New("boom"))}
	c, mr := newCache(t, inner)

	_, err := c.Embed(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Empty(t, mr.Keys())
}

type shortEmbedder struct{ countingEmbedder }

func (s *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.countingEmbedder.EmbedBatch(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

func TestCachedEmbedBatchRejectsShortProviderResponse(t *testing.T) {
	c, mr := newCache(t, &shortEmbedder{})

	_, err := c.EmbedBatch(context.Background(), []string{"serve", "block", "dig"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Empty(t, mr.Keys())
}
