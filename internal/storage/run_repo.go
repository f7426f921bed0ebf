package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks bigbrain/internal/storage RunStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Meta keys written by an index build.
const (
	MetaIndexVersion   = "index_version"
	MetaEmbeddingModel = "embedding_model"
	MetaCollection     = "collection"
	MetaVectorSize     = "vector_size"
	MetaChunkSize      = "chunk_size"
	MetaChunkOverlap   = "chunk_overlap"
)

// RunStore records per-run bookkeeping: skipped files and index metadata.
type RunStore interface {
	// RecordFileError stores a file that could not be read.
	RecordFileError(ctx context.Context, rec FileErrorRecord) error
	// ListFileErrors returns recorded file errors in insertion order.
	ListFileErrors(ctx context.Context) ([]FileErrorRecord, error)
	// SetMeta stores a metadata value, replacing any previous one.
	SetMeta(ctx context.Context, key, value string) error
	// GetMeta returns a metadata value. Returns ErrNotFound if the key is unset.
	GetMeta(ctx context.Context, key string) (string, error)
	// Reset clears file errors and metadata.
	Reset(ctx context.Context) error
}

// RunRepo implements RunStore on SQLite.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) RecordFileError(ctx context.Context, rec FileErrorRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO file_errors (path, message) VALUES (?, ?)",
		rec.Path, rec.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record file error: %w", err)
	}
	return nil
}

func (r *RunRepo) ListFileErrors(ctx context.Context) ([]FileErrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT path, message FROM file_errors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query file errors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []FileErrorRecord
	for rows.Next() {
		var rec FileErrorRecord
		if err := rows.Scan(&rec.Path, &rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan file error: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return recs, nil
}

func (r *RunRepo) SetMeta(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func (r *RunRepo) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func (r *RunRepo) Reset(ctx context.Context) error {
	for _, stmt := range []string{"DELETE FROM file_errors", "DELETE FROM meta"} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset run state: %w", err)
		}
	}
	return nil
}
