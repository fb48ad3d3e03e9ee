package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL    = 24 * time.Hour
	DefaultCachePrefix = "volleyref:emb:"
)

// CachedEmbedder stores vectors in Redis keyed by a hash of the model name
// and flattened text. Redis failures degrade to calling the wrapped embedder.
type CachedEmbedder struct {
	next      Embedder
	redis     *redis.Client
	namespace string
	ttl       time.Duration
}

// NewCachedEmbedder wraps next. namespace should identify the embedding model
// so vectors from different models never mix.
func NewCachedEmbedder(next Embedder, client *redis.Client, namespace string, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{next: next, redis: client, namespace: namespace, ttl: ttl}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + flatten(text)))
	return DefaultCachePrefix + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or embeds and caches it
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil {
			logger.Debugw("embedding cache hit", "key", key)
			return vec, nil
		}
		logger.Warnw("dropping corrupt cached embedding", "key", key)
		_ = c.redis.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		logger.Warnw("embedding cache unavailable", "error", err.Error())
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, map[string][]float32{key: vec})
	return vec, nil
}

// EmbedBatch looks every text up in one MGET and embeds only the misses
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("embedding cache unavailable", "error", err.Error())
		values = make([]interface{}, len(texts))
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			var vec []float32
			if json.Unmarshal([]byte(s), &vec) == nil {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		return out, nil
	}
	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(missTexts))

	fresh, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingUnavailable, len(missTexts), len(fresh))
	}
	toStore := make(map[string][]float32, len(fresh))
	for j, i := range missIdx {
		out[i] = fresh[j]
		toStore[keys[i]] = fresh[j]
	}
	c.store(ctx, toStore)
	return out, nil
}

func (c *CachedEmbedder) store(ctx context.Context, vectors map[string][]float32) {
	pipe := c.redis.Pipeline()
	for k, v := range vectors {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		pipe.Set(ctx, k, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error(), "count", len(vectors))
	}
}
