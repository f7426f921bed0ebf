package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"bigbrain/internal/config"
	"bigbrain/internal/contextutil"
	"bigbrain/internal/indexer"
	"bigbrain/internal/llm"
	"bigbrain/internal/rag"
	"bigbrain/internal/source"
	"bigbrain/internal/storage"
	"bigbrain/internal/vectorstore"
)

// ServiceBackend is the production Backend: SQLite for chunk text, a local or Qdrant vector
// store, and remote embedding and chat providers.
type ServiceBackend struct {
	db       *sql.DB
	qdrant   *vectorstore.QdrantStore
	pipeline *indexer.Pipeline
	engine   rag.Engine
	cache    *llm.CachedEmbedder
	topK     int
}

// NewServiceBackend opens the index database under cfg.IndexDir and wires the configured providers.
// Credentials are not checked here; a missing key surfaces as an error from the first remote call.
func NewServiceBackend(ctx context.Context, cfg *config.Config) (*ServiceBackend, error) {
	logger := contextutil.LoggerFromContext(ctx)

	db, err := storage.New(cfg.IndexDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate index database: %w", err)
	}
	logger.InfoContext(ctx, "index database ready", "path", cfg.IndexDBPath(), "driver", storage.DriverName)

	b := &ServiceBackend{db: db, topK: cfg.TopK}

	var store vectorstore.VectorStore
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		b.qdrant = qs
		store = qs
	default:
		store = vectorstore.NewLocalStore(db)
	}
	logger.InfoContext(ctx, "vector store ready", "backend", cfg.VectorBackend, "collection", cfg.QdrantCollection)

	provider, err := newEmbedder(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	cache, err := llm.NewCachedEmbedder(
		llm.NewBatchEmbedder(provider, cfg.EmbedBatchSize, cfg.EmbedRateLimit),
		cfg.EmbeddingModel,
		cfg.EmbedCacheSize,
	)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	b.cache = cache

	chat, err := newChatModel(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	chunkRepo := storage.NewChunkRepo(db)
	b.pipeline = indexer.NewPipeline(
		storage.NewDocumentRepo(db),
		chunkRepo,
		storage.NewRunRepo(db),
		cache,
		store,
		indexer.PipelineOptions{
			Collection:     cfg.QdrantCollection,
			BatchSize:      cfg.EmbedBatchSize,
			Dimension:      cfg.EmbeddingDimension,
			EmbeddingModel: cfg.EmbeddingModel,
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
		},
	)
	b.engine = rag.NewEngine(cache, store, cfg.QdrantCollection, chunkRepo, chat, rag.Options{
		K:         cfg.TopK,
		MaxTokens: cfg.LLMMaxTokens,
	})

	return b, nil
}

func newEmbedder(cfg *config.Config) (llm.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel), nil
	case config.ProviderLocal:
		return llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension), nil
	default:
		return nil, &ValidationError{Field: "embedding_provider", Message: fmt.Sprintf("%q has no embeddings API", cfg.EmbeddingProvider)}
	}
}

func newChatModel(ctx context.Context, cfg *config.Config) (llm.ChatModel, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIChat(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel), nil
	case config.ProviderLocal:
		if cfg.LLMAutoload {
			if err := llm.NewModelLoader(cfg.LLMBaseURL).LoadModel(ctx, cfg.LLMModel, nil); err != nil {
				return nil, WrapExternal(err, "failed to load chat model")
			}
		}
		return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	default:
		return nil, &ValidationError{Field: "llm_provider", Message: fmt.Sprintf("%q is unknown", cfg.LLMProvider)}
	}
}

// BuildIndex implements Backend.
func (b *ServiceBackend) BuildIndex(ctx context.Context, corpus *indexer.Corpus, skipped []source.FileError) (indexer.Index, error) {
	index, err := b.pipeline.Build(ctx, corpus, skipped)
	if err != nil {
		return indexer.Index{}, err
	}

	hits, misses := b.cache.Stats()
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "embedding cache", "hits", hits, "misses", misses)
	return index, nil
}

// Answer implements Backend.
func (b *ServiceBackend) Answer(ctx context.Context, index indexer.Index, question string) (rag.AskResponse, error) {
	if index.Empty() {
		return rag.AskResponse{Answer: rag.NoContextAnswer, References: []rag.Reference{}}, nil
	}

	logger := contextutil.LoggerFromContext(ctx)
	resp, err := b.engine.Ask(ctx, rag.AskRequest{
		Question: question,
		K:        b.topK,
		Debug:    logger.Enabled(ctx, slog.LevelDebug),
	})
	if err != nil {
		return rag.AskResponse{}, err
	}

	if resp.Debug != nil {
		for _, c := range resp.Debug.RetrievedChunks {
			logger.DebugContext(ctx, "retrieved chunk",
				"rank", c.Rank,
				"selected", c.Selected,
				"path", c.Path,
				"chunk_index", c.ChunkIndex,
				"score_vector", c.ScoreVector,
				"score_lexical", c.ScoreLexical,
				"score_final", c.ScoreFinal,
				"text", c.Text,
			)
		}
		logger.DebugContext(ctx, "answer timings",
			"retrieval_ms", resp.Debug.Timings.RetrievalMs,
			"generation_ms", resp.Debug.Timings.GenerationMs,
			"total_ms", resp.Debug.Timings.TotalMs,
		)
	}
	return resp, nil
}

// Close releases the database and the Qdrant connection.
func (b *ServiceBackend) Close() error {
	var errs []error
	if b.qdrant != nil {
		errs = append(errs, b.qdrant.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	return errors.Join(errs...)
}
