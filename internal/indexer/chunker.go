package indexer

import (
	"fmt"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of characters shared with the previous chunk.
	DefaultChunkOverlap = 0
)

// FixedSizeChunker splits text into windows of a fixed number of characters.
// Splitting is purely positional: words, lines and tokens are not respected.
// Characters are Unicode code points, so multi-byte text is never cut inside a rune.
type FixedSizeChunker struct {
	size    int
	overlap int
}

// NewFixedSizeChunker creates a chunker. size must be positive and overlap in [0, size).
func NewFixedSizeChunker(size, overlap int) (*FixedSizeChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &FixedSizeChunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in characters.
func (c *FixedSizeChunker) Size() int { return c.size }

// Overlap returns the overlap between neighbouring chunks in characters.
func (c *FixedSizeChunker) Overlap() int { return c.overlap }

// Split cuts content into chunks. Empty content yields no chunks.
// Window i starts at character i*(size-overlap); the last window may be shorter than size.
// With zero overlap, concatenating the chunk texts reproduces content exactly.
func (c *FixedSizeChunker) Split(path, content string) []Chunk {
	if content == "" {
		return nil
	}

	// Byte offset of every rune start so windows slice the original string.
	starts := make([]int, 0, utf8.RuneCountInString(content))
	for i := range content {
		starts = append(starts, i)
	}
	n := len(starts)
	step := c.size - c.overlap

	chunks := make([]Chunk, 0, n/step+1)
	for start := 0; start < n; start += step {
		end := start + c.size
		if end > n {
			end = n
		}

		byteEnd := len(content)
		if end < n {
			byteEnd = starts[end]
		}

		chunks = append(chunks, Chunk{
			Path:   path,
			Index:  len(chunks),
			Offset: start,
			Text:   content[starts[start]:byteEnd],
		})

		if end == n {
			break
		}
	}

	return chunks
}
