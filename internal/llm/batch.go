package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"bigbrain/internal/contextutil"
)

// BatchEmbedder splits requests into batches of at most size texts and paces them.
type BatchEmbedder struct {
	next    Embedder
	size    int
	limiter *rate.Limiter
}

// NewBatchEmbedder wraps next. perSecond is the maximum number of batches per second;
// 0 disables pacing.
func NewBatchEmbedder(next Embedder, size int, perSecond float64) *BatchEmbedder {
	if size <= 0 {
		size = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &BatchEmbedder{
		next:    next,
		size:    size,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// EmbedTexts embeds texts batch by batch, waiting on the limiter before each request.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	logger := contextutil.LoggerFromContext(ctx)
	result := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limiter: %w", err)
		}

		vectors, err := b.next.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(vectors))
		}
		result = append(result, vectors...)

		logger.DebugContext(ctx, "embedded batch", "start", start, "end", end, "total", len(texts))
	}

	return result, nil
}
