package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "fixed-v1"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// CoverageStats contains statistics about a collected corpus.
type CoverageStats struct {
	// FilesProcessed is the number of files read successfully.
	FilesProcessed int `json:"files_processed"`
	// FilesWith0Chunks is the number of readable files that produced no chunks (empty files).
	FilesWith0Chunks int `json:"files_with_0_chunks"`
	// FilesSkipped is the number of files or directories that could not be read.
	FilesSkipped int `json:"files_skipped"`
	// Chunks is the total number of chunks in the corpus.
	Chunks int `json:"chunks"`
	// ChunkLengthStats describes chunk lengths in characters.
	ChunkLengthStats LengthStats `json:"chunk_length_stats"`
	// ChunkTokenStats describes estimated token counts per chunk.
	ChunkTokenStats LengthStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// LengthStats contains min, max, mean and p95 of a distribution.
type LengthStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeStats derives coverage statistics from a corpus.
func ComputeStats(corpus *Corpus, skipped int, embeddingModel string, chunker *FixedSizeChunker) CoverageStats {
	stats := CoverageStats{
		FilesProcessed: len(corpus.Files),
		FilesSkipped:   skipped,
		Chunks:         len(corpus.Chunks),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   IndexVersion(embeddingModel, chunker.Size(), chunker.Overlap()),
	}

	for _, f := range corpus.Files {
		if f.Chunks == 0 {
			stats.FilesWith0Chunks++
		}
	}

	if len(corpus.Chunks) > 0 {
		lengths := make([]int, 0, len(corpus.Chunks))
		tokenCounts := make([]int, 0, len(corpus.Chunks))
		for _, chunk := range corpus.Chunks {
			runeCount := utf8.RuneCountInString(chunk.Text)
			lengths = append(lengths, runeCount)

			// Estimate tokens from rune count (approximation: ~4 chars per token)
			tokenCount := int(math.Round(float64(runeCount) / TokensPerRune))
			if tokenCount < 1 {
				tokenCount = 1
			}
			tokenCounts = append(tokenCounts, tokenCount)
		}
		stats.ChunkLengthStats = computeLengthStats(lengths)
		stats.ChunkTokenStats = computeLengthStats(tokenCounts)
	}

	return stats
}

// IndexVersion hashes the parameters that determine index contents.
func IndexVersion(embeddingModel string, chunkSize, chunkOverlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|chunkOverlap=%d",
		ChunkerVersion, embeddingModel, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeLengthStats computes min, max, mean, and p95.
func computeLengthStats(values []int) LengthStats {
	if len(values) == 0 {
		return LengthStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := float64(sum) / float64(len(values))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return LengthStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
