package storage

import "time"

// DocumentRecord represents one indexed source file.
type DocumentRecord struct {
	ID         string // UUID
	Path       string // Relative path from source root
	Size       int64  // Content size in bytes
	Hash       string // SHA256 hex string of file content
	ChunkCount int
	IndexedAt  time.Time
}

// ChunkRecord represents a chunk of text from a document, indexed for vector search.
type ChunkRecord struct {
	ID         string // UUID (same as vector point ID)
	DocumentID string // UUID (foreign key to documents.id)
	Path       string // Filled on reads from the owning document
	ChunkIndex int    // Index within document (starts at 0)
	Offset     int    // Character offset within the document
	Text       string // Chunk text content
}

// FileErrorRecord is a file that could not be read during a run.
type FileErrorRecord struct {
	Path    string
	Message string
}
