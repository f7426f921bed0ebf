package indexer

import "testing"

func TestComputeStats(t *testing.T) {
	chunker, err := NewFixedSizeChunker(10, 0)
	if err != nil {
		t.Fatalf("NewFixedSizeChunker() error = %v", err)
	}

	corpus := &Corpus{
		Files: []FileInfo{
			{Path: "a.go", Chunks: 2},
			{Path: "empty.txt", Chunks: 0},
			{Path: "b.go", Chunks: 1},
		},
		Chunks: []Chunk{
			{Path: "a.go", Text: "0123456789"},
			{Path: "a.go", Index: 1, Offset: 10, Text: "0123"},
			{Path: "b.go", Text: "ü"},
		},
	}

	stats := ComputeStats(corpus, 2, "test-embedding-model", chunker)

	if stats.FilesProcessed != 3 {
		t.Errorf("FilesProcessed = %d, want 3", stats.FilesProcessed)
	}
	if stats.FilesWith0Chunks != 1 {
		t.Errorf("FilesWith0Chunks = %d, want 1", stats.FilesWith0Chunks)
	}
	if stats.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", stats.FilesSkipped)
	}
	if stats.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", stats.Chunks)
	}
	if stats.ChunkerVersion != ChunkerVersion {
		t.Errorf("ChunkerVersion = %s, want %s", stats.ChunkerVersion, ChunkerVersion)
	}

	// Lengths are characters: 10, 4, 1.
	want := LengthStats{Min: 1, Max: 10, Mean: 5, P95: 10}
	if stats.ChunkLengthStats != want {
		t.Errorf("ChunkLengthStats = %+v, want %+v", stats.ChunkLengthStats, want)
	}
	// Tokens: 10/4 rounds up to 3, 4/4 is 1 and 1/4 is raised to the minimum of 1.
	if stats.ChunkTokenStats.Max != 3 || stats.ChunkTokenStats.Min != 1 {
		t.Errorf("ChunkTokenStats = %+v, want min 1 max 3", stats.ChunkTokenStats)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	chunker, _ := NewFixedSizeChunker(DefaultChunkSize, DefaultChunkOverlap)

	stats := ComputeStats(&Corpus{}, 0, "m", chunker)
	if stats.Chunks != 0 || stats.FilesProcessed != 0 {
		t.Errorf("stats = %+v, want zero counts", stats)
	}
	if stats.ChunkLengthStats != (LengthStats{}) {
		t.Errorf("ChunkLengthStats = %+v, want zero", stats.ChunkLengthStats)
	}
	if stats.IndexVersion == "" {
		t.Error("IndexVersion should not be empty")
	}
}

func TestIndexVersion(t *testing.T) {
	base := IndexVersion("text-embedding-3-small", 1000, 0)

	if len(base) != 16 {
		t.Errorf("IndexVersion length = %d, want 16", len(base))
	}
	if base != IndexVersion("text-embedding-3-small", 1000, 0) {
		t.Error("IndexVersion should be stable for identical inputs")
	}

	variants := []string{
		IndexVersion("nomic-embed-text", 1000, 0),
		IndexVersion("text-embedding-3-small", 500, 0),
		IndexVersion("text-embedding-3-small", 1000, 100),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d should change the index version", i)
		}
	}
}

func TestComputeLengthStats(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   LengthStats
	}{
		{"empty", nil, LengthStats{}},
		{"single", []int{7}, LengthStats{Min: 7, Max: 7, Mean: 7, P95: 7}},
		{"unsorted", []int{3, 1, 2}, LengthStats{Min: 1, Max: 3, Mean: 2, P95: 3}},
		{"rounded mean", []int{1, 2, 2}, LengthStats{Min: 1, Max: 2, Mean: 1.67, P95: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeLengthStats(tt.values); got != tt.want {
				t.Errorf("computeLengthStats(%v) = %+v, want %+v", tt.values, got, tt.want)
			}
		})
	}
}
