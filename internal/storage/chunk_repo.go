package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks bigbrain/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChunkStore holds the text of every indexed chunk, keyed by the ID its
// vector point shares.
type ChunkStore interface {
	// InsertBatch stores chunks in a single transaction. Every ID must be set.
	InsertBatch(ctx context.Context, chunks []*ChunkRecord) error
	// GetByID returns the chunk with its document path, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// ChunkRepo is the SQLite ChunkStore.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch implements ChunkStore. Either all chunks are stored or none.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []*ChunkRecord) (err error) {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, document_id, chunk_index, char_offset, text) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk %d of document %s has no ID", c.ChunkIndex, c.DocumentID)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.ChunkIndex, c.Offset, c.Text); err != nil {
			return fmt.Errorf("failed to insert chunk %d of document %s: %w", c.ChunkIndex, c.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// GetByID implements ChunkStore.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var c ChunkRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.document_id, d.path, c.chunk_index, c.char_offset, c.text
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE c.id = ?`,
		id,
	).Scan(&c.ID, &c.DocumentID, &c.Path, &c.ChunkIndex, &c.Offset, &c.Text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to load chunk %s: %w", id, err)
	}
	return &c, nil
}

// Count implements ChunkStore.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
