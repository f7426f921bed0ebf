package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBatchEmbedder_SplitsIntoBatches(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		texts     []string
		wantCalls []int
	}{
		{name: "exact multiple", size: 2, texts: []string{"a", "b", "c", "d"}, wantCalls: []int{2, 2}},
		{name: "remainder", size: 2, texts: []string{"a", "b", "c"}, wantCalls: []int{2, 1}},
		{name: "single batch", size: 64, texts: []string{"a", "b"}, wantCalls: []int{2}},
		{name: "non-positive size", size: 0, texts: []string{"a", "b"}, wantCalls: []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &countingEmbedder{}
			batcher := NewBatchEmbedder(inner, tt.size, 0)

			got, err := batcher.EmbedTexts(context.Background(), tt.texts)
			if err != nil {
				t.Fatalf("EmbedTexts() error = %v", err)
			}
			if len(got) != len(tt.texts) {
				t.Errorf("EmbedTexts() returned %d vectors, want %d", len(got), len(tt.texts))
			}
			if len(inner.calls) != len(tt.wantCalls) {
				t.Fatalf("upstream calls = %d, want %d", len(inner.calls), len(tt.wantCalls))
			}
			for i, n := range tt.wantCalls {
				if len(inner.calls[i]) != n {
					t.Errorf("call %d size = %d, want %d", i, len(inner.calls[i]), n)
				}
			}
		})
	}
}

func TestBatchEmbedder_RateLimitHonorsContext(t *testing.T) {
	inner := &countingEmbedder{}
	// One batch every 100 seconds: the second batch must wait.
	batcher := NewBatchEmbedder(inner, 1, 0.01)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := batcher.EmbedTexts(ctx, []string{"a", "b"})
	if err == nil {
		t.Fatal("EmbedTexts() expected rate limiter error, got nil")
	}
	if len(inner.calls) != 1 {
		t.Errorf("upstream calls = %d, want 1 before the limiter blocked", len(inner.calls))
	}
}

func TestBatchEmbedder_PropagatesErrors(t *testing.T) {
	batcher := NewBatchEmbedder(&countingEmbedder{err: errUpstream}, 2, 0)

	_, err := batcher.EmbedTexts(context.Background(), []string{"a"})
	if !errors.Is(err, errUpstream) {
		t.Errorf("EmbedTexts() error = %v, want wrapped upstream error", err)
	}

	if _, err := batcher.EmbedTexts(context.Background(), nil); err == nil {
		t.Error("EmbedTexts() with empty input should return error")
	}
}
