package indexer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"bigbrain/internal/contextutil"
	"bigbrain/internal/llm"
	"bigbrain/internal/source"
	"bigbrain/internal/storage"
	"bigbrain/internal/vectorstore"
)

// DefaultBatchSize is the number of chunk texts sent per embedding request.
const DefaultBatchSize = 64

// PipelineOptions configures an index build.
type PipelineOptions struct {
	Collection     string
	BatchSize      int // 0 means DefaultBatchSize
	Dimension      int // 0 means use the size of the first embedding
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}

// Pipeline turns a collected corpus into a searchable index stored in SQLite and the vector store.
type Pipeline struct {
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	runRepo     storage.RunStore
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	opts        PipelineOptions
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	runRepo storage.RunStore,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	opts PipelineOptions,
) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		runRepo:     runRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		opts:        opts,
	}
}

// Build replaces the stored index with the given corpus.
// Previous documents, chunks and run metadata are removed first so one run always yields one fresh index.
// A corpus without chunks makes no embedding call and drops the vector collection,
// since there is no vector size to recreate it with.
func (p *Pipeline) Build(ctx context.Context, corpus *Corpus, skipped []source.FileError) (Index, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	index := Index{
		Collection: p.opts.Collection,
		Files:      len(corpus.Files),
		Version:    IndexVersion(p.opts.EmbeddingModel, p.opts.ChunkSize, p.opts.ChunkOverlap),
	}

	if err := p.docRepo.DeleteAll(ctx); err != nil {
		return Index{}, fmt.Errorf("failed to clear documents: %w", err)
	}
	if err := p.runRepo.Reset(ctx); err != nil {
		return Index{}, fmt.Errorf("failed to reset run metadata: %w", err)
	}

	for _, fe := range skipped {
		if err := p.runRepo.RecordFileError(ctx, storage.FileErrorRecord{Path: fe.Path, Message: fe.Message}); err != nil {
			return Index{}, fmt.Errorf("failed to record file error: %w", err)
		}
	}

	pointIDs, err := p.storeCorpus(ctx, corpus)
	if err != nil {
		return Index{}, err
	}

	if len(corpus.Chunks) == 0 {
		if err := p.vectorStore.DropCollection(ctx, p.opts.Collection); err != nil {
			return Index{}, fmt.Errorf("failed to clear vector collection: %w", err)
		}
		logger.InfoContext(ctx, "no chunks to embed", "files", len(corpus.Files))
	} else {
		size, err := p.embedAndUpsert(ctx, corpus, pointIDs)
		if err != nil {
			return Index{}, err
		}
		index.VectorSize = size
		index.Chunks = len(corpus.Chunks)
	}

	if err := p.writeMeta(ctx, index); err != nil {
		return Index{}, err
	}

	logger.InfoContext(ctx, "index built",
		"collection", index.Collection,
		"files", index.Files,
		"chunks", index.Chunks,
		"vector_size", index.VectorSize,
		"index_version", index.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return index, nil
}

// storeCorpus inserts one document per file and one chunk row per chunk.
// It returns the chunk IDs in corpus order; they double as vector point IDs.
func (p *Pipeline) storeCorpus(ctx context.Context, corpus *Corpus) ([]string, error) {
	docIDs := make(map[string]string, len(corpus.Files))
	now := time.Now().UTC()

	for _, file := range corpus.Files {
		doc := &storage.DocumentRecord{
			ID:         uuid.New().String(),
			Path:       file.Path,
			Size:       file.Size,
			Hash:       file.Hash,
			ChunkCount: file.Chunks,
			IndexedAt:  now,
		}
		if err := p.docRepo.Insert(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to insert document %s: %w", file.Path, err)
		}
		docIDs[file.Path] = doc.ID
	}

	records := make([]*storage.ChunkRecord, len(corpus.Chunks))
	ids := make([]string, len(corpus.Chunks))
	for i, chunk := range corpus.Chunks {
		docID, ok := docIDs[chunk.Path]
		if !ok {
			return nil, fmt.Errorf("chunk %d references unknown file %s", i, chunk.Path)
		}
		records[i] = &storage.ChunkRecord{
			ID:         uuid.New().String(),
			DocumentID: docID,
			ChunkIndex: chunk.Index,
			Offset:     chunk.Offset,
			Text:       chunk.Text,
		}
		ids[i] = records[i].ID
	}
	if len(records) > 0 {
		if err := p.chunkRepo.InsertBatch(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	return ids, nil
}

// embedAndUpsert embeds chunk texts batch by batch and upserts them as points.
// The collection is reset before the first upsert using the configured or observed vector size.
func (p *Pipeline) embedAndUpsert(ctx context.Context, corpus *Corpus, pointIDs []string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)
	vectorSize := 0

	for start := 0; start < len(corpus.Chunks); start += p.opts.BatchSize {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		end := min(start+p.opts.BatchSize, len(corpus.Chunks))
		batch := corpus.Chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
		}

		if vectorSize == 0 {
			vectorSize = p.opts.Dimension
			if vectorSize == 0 {
				vectorSize = len(embeddings[0])
			}
			if err := p.vectorStore.ResetCollection(ctx, p.opts.Collection, vectorSize); err != nil {
				return 0, fmt.Errorf("failed to reset collection: %w", err)
			}
		}

		points := make([]vectorstore.Point, len(batch))
		for i, chunk := range batch {
			if len(embeddings[i]) != vectorSize {
				return 0, fmt.Errorf("embedding size mismatch for %s chunk %d: expected %d, got %d",
					chunk.Path, chunk.Index, vectorSize, len(embeddings[i]))
			}
			points[i] = vectorstore.Point{
				ID:  pointIDs[start+i],
				Vec: embeddings[i],
				Meta: map[string]any{
					"path":        chunk.Path,
					"chunk_index": chunk.Index,
					"offset":      chunk.Offset,
				},
			}
		}

		if err := p.vectorStore.Upsert(ctx, p.opts.Collection, points); err != nil {
			return 0, fmt.Errorf("failed to upsert vectors: %w", err)
		}

		logger.DebugContext(ctx, "embedded batch", "from", start, "to", end, "total", len(corpus.Chunks))
	}

	return vectorSize, nil
}

func (p *Pipeline) writeMeta(ctx context.Context, index Index) error {
	meta := []struct{ key, value string }{
		{storage.MetaIndexVersion, index.Version},
		{storage.MetaEmbeddingModel, p.opts.EmbeddingModel},
		{storage.MetaCollection, index.Collection},
		{storage.MetaVectorSize, strconv.Itoa(index.VectorSize)},
		{storage.MetaChunkSize, strconv.Itoa(p.opts.ChunkSize)},
		{storage.MetaChunkOverlap, strconv.Itoa(p.opts.ChunkOverlap)},
	}
	for _, m := range meta {
		if err := p.runRepo.SetMeta(ctx, m.key, m.value); err != nil {
			return fmt.Errorf("failed to write index metadata: %w", err)
		}
	}
	return nil
}
