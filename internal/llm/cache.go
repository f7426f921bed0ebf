package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"bigbrain/internal/contextutil"
)

// DefaultCacheSize is used when NewCachedEmbedder is given a non-positive size.
const DefaultCacheSize = 10000

// CachedEmbedder memoizes embeddings by content hash with LRU eviction.
// Only cache misses reach the wrapped embedder, and duplicate texts within one call are sent once.
type CachedEmbedder struct {
	next   Embedder
	model  string
	cache  *lru.Cache[string, []float32]
	hits   int
	misses int
}

// NewCachedEmbedder wraps next with an LRU cache holding up to size vectors.
// model is part of the cache key so vectors from different models never mix.
func NewCachedEmbedder(next Embedder, model string, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, model: model, cache: cache}, nil
}

// EmbedTexts returns cached vectors where available and embeds the rest.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	result := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	// Unique misses in first-seen order, and the positions each one fills.
	var missTexts []string
	missSlots := make(map[string][]int)

	for i, text := range texts {
		key := c.key(text)
		keys[i] = key
		if vec, ok := c.cache.Get(key); ok {
			result[i] = copyVector(vec)
			c.hits++
			continue
		}
		if _, seen := missSlots[key]; !seen {
			missTexts = append(missTexts, text)
		}
		missSlots[key] = append(missSlots[key], i)
	}

	if len(missTexts) > 0 {
		c.misses += len(missTexts)

		vectors, err := c.next.EmbedTexts(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(vectors))
		}

		for j, text := range missTexts {
			key := c.key(text)
			c.cache.Add(key, vectors[j])
			for _, slot := range missSlots[key] {
				result[slot] = copyVector(vectors[j])
			}
		}
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "embedding cache",
		"requested", len(texts),
		"embedded", len(missTexts),
		"cache_size", c.cache.Len(),
	)
	return result, nil
}

// Stats returns the cumulative number of cache hits and upstream-embedded texts.
func (c *CachedEmbedder) Stats() (hits, misses int) {
	return c.hits, c.misses
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// copyVector returns a copy so callers cannot mutate cached values.
func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
