package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"bigbrain/internal/contextutil"
)

// LocalStore implements VectorStore on the run's SQLite database.
// Vectors are stored as little-endian float32 blobs and searched by brute-force cosine similarity.
// It expects the collections and embeddings tables created by storage.Migrate.
type LocalStore struct {
	db *sql.DB
}

// NewLocalStore creates a LocalStore on an open, migrated database.
func NewLocalStore(db *sql.DB) *LocalStore {
	return &LocalStore{db: db}
}

// ResetCollection drops the collection and its points and recreates it empty.
func (s *LocalStore) ResetCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be greater than 0")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (name, vector_size) VALUES (?, ?)",
		collection, vectorSize,
	); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection reset: %w", err)
	}

	logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

// DropCollection deletes the collection row and every point stored under it.
func (s *LocalStore) DropCollection(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE collection = ?", collection)
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection drop: %w", err)
	}

	dropped, _ := res.RowsAffected()
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "collection dropped", "collection", collection, "points", dropped)
	return nil
}

// Upsert inserts or replaces points. Every vector must match the collection's size.
func (s *LocalStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	size, err := s.vectorSize(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO embeddings (collection, point_id, vector, meta) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, point := range points {
		if len(point.Vec) != size {
			return fmt.Errorf("point %s has dimension %d, collection %s expects %d", point.ID, len(point.Vec), collection, size)
		}

		meta, err := json.Marshal(point.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for point %s: %w", point.ID, err)
		}

		if _, err := stmt.ExecContext(ctx, collection, point.ID, serializeVector(point.Vec), string(meta)); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", point.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search returns the k points with the highest cosine similarity to query.
// Ties keep insertion order.
func (s *LocalStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	size, err := s.vectorSize(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != size {
		return nil, fmt.Errorf("query has dimension %d, collection %s expects %d", len(query), collection, size)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT point_id, vector, meta FROM embeddings WHERE collection = ? ORDER BY rowid",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []SearchResult
	for rows.Next() {
		var (
			id   string
			blob []byte
			raw  string
		)
		if err := rows.Scan(&id, &blob, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}

		meta := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for point %s: %w", id, err)
		}

		results = append(results, SearchResult{
			PointID: id,
			Score:   float32(cosineSimilarity(query, deserializeVector(blob))),
			Meta:    meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// vectorSize returns the configured dimension of a collection.
func (s *LocalStore) vectorSize(ctx context.Context, collection string) (int, error) {
	var size int
	err := s.db.QueryRowContext(ctx, "SELECT vector_size FROM collections WHERE name = ?", collection).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	return size, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
