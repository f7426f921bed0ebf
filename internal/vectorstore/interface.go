package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks bigbrain/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// ResetCollection drops the collection if present and recreates it empty
	// for vectors of the given size with cosine distance.
	ResetCollection(ctx context.Context, collection string, vectorSize int) error

	// DropCollection removes the collection and all its points.
	// A collection that does not exist is not an error.
	DropCollection(ctx context.Context, collection string) error

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k points most similar to query, best first.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)
}
