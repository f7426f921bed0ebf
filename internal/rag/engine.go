package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bigbrain/internal/contextutil"
	"bigbrain/internal/llm"
	"bigbrain/internal/storage"
	"bigbrain/internal/vectorstore"
)

const (
	// DefaultK is the number of chunks stuffed into the prompt when none is configured.
	DefaultK = 4
	// MaxK bounds the number of chunks stuffed into the prompt.
	MaxK = 20
	// candidateMultiplier widens the vector search so reranking has alternatives to promote.
	candidateMultiplier = 3
	// maxDebugTextLength bounds chunk text in debug output, in characters.
	maxDebugTextLength = 300
)

// NoContextAnswer is returned when the index holds nothing to answer from.
const NoContextAnswer = "I couldn't find any content in the codebase to answer this question."

const systemPrompt = "You are a helpful assistant that answers questions about a software codebase. " +
	"Use only the pieces of source code and text in the context below to answer. " +
	"If the context doesn't contain enough information to answer the question, say that you don't know " +
	"instead of making up an answer. Mention specific files when possible."

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Ask answers a question using RAG by retrieving relevant chunks and generating an answer.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

// Options tunes retrieval and generation.
type Options struct {
	// K is the default number of chunks per question. 0 means DefaultK.
	K int
	// MaxTokens is passed to the chat model. 0 leaves the provider default.
	MaxTokens int
	// Temperature is passed to the chat model.
	Temperature float32
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunkRepo   storage.ChunkStore
	chat        llm.ChatModel
	opts        Options
}

// NewEngine creates a new RAG engine.
func NewEngine(
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	chunkRepo storage.ChunkStore,
	chat llm.ChatModel,
	opts Options,
) Engine {
	return &ragEngine{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunkRepo:   chunkRepo,
		chat:        chat,
		opts:        opts,
	}
}

// resolveK picks the requested chunk count, falling back to the engine default, clamped to [1, MaxK].
func (e *ragEngine) resolveK(requested int) int {
	k := requested
	if k <= 0 {
		k = e.opts.K
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}
	return k
}

// Ask answers a question using RAG.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return AskResponse{}, fmt.Errorf("question must not be empty")
	}

	k := e.resolveK(req.K)
	logger.InfoContext(ctx, "RAG query started", "question", req.Question, "k", k)

	// An empty index has nothing to retrieve; skip every external call.
	total, err := e.chunkRepo.Count(ctx)
	if err != nil {
		return AskResponse{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		logger.InfoContext(ctx, "index is empty, answering without context")
		return AskResponse{Answer: NoContextAnswer, References: []Reference{}}, nil
	}

	// Embed the question
	embeddings, err := e.embedder.EmbedTexts(ctx, []string{req.Question})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return AskResponse{}, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddings) == 0 {
		return AskResponse{}, fmt.Errorf("no embedding returned for question")
	}

	pool := min(k*candidateMultiplier, total)
	results, err := e.vectorStore.Search(ctx, e.collection, embeddings[0], max(pool, 1))
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return AskResponse{}, fmt.Errorf("failed to search vector store: %w", err)
	}
	logger.InfoContext(ctx, "vector search completed", "results_count", len(results), "pool", pool)

	// Fetch chunk texts from database
	candidates := make([]rerankCandidate, 0, len(results))
	for i, result := range results {
		chunk, err := e.chunkRepo.GetByID(ctx, result.PointID)
		if errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "search hit has no stored chunk", "chunk_id", result.PointID)
			continue
		}
		if err != nil {
			return AskResponse{}, fmt.Errorf("failed to fetch chunk %s: %w", result.PointID, err)
		}
		candidates = append(candidates, rerankCandidate{
			result:       result,
			chunk:        chunk,
			originalRank: i + 1,
		})
	}

	if len(candidates) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return AskResponse{Answer: NoContextAnswer, References: []Reference{}}, nil
	}

	rerank(req.Question, candidates)
	selected := candidates[:min(k, len(candidates))]
	retrievalMs := time.Since(start).Milliseconds()

	contextString := buildContext(selected)
	logger.InfoContext(ctx, "context formatted for LLM",
		"context_length", len(contextString),
		"chunks_included", len(selected),
	)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("%s\n\nQuestion: %s", contextString, req.Question)},
	}

	genStart := time.Now()
	answer, err := e.chat.ChatWithMessages(ctx, messages, llm.ChatParams{
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return AskResponse{}, fmt.Errorf("failed to get LLM response: %w", err)
	}
	generationMs := time.Since(genStart).Milliseconds()

	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(selected), "answer_length", len(answer))

	resp := AskResponse{
		Answer:     answer,
		References: buildReferences(selected),
	}
	if req.Debug {
		resp.Debug = buildDebugInfo(candidates, len(selected), Timings{
			RetrievalMs:  retrievalMs,
			GenerationMs: generationMs,
			TotalMs:      time.Since(start).Milliseconds(),
		})
	}
	return resp, nil
}

// buildContext formats the selected chunks as one stuffed context block.
func buildContext(selected []rerankCandidate) string {
	var b strings.Builder
	b.WriteString("--- Context from codebase ---\n\n")
	for _, c := range selected {
		fmt.Fprintf(&b, "File: %s (chunk %d, offset %d)\n", c.chunk.Path, c.chunk.ChunkIndex, c.chunk.Offset)
		fmt.Fprintf(&b, "Content:\n%s\n\n", c.chunk.Text)
	}
	b.WriteString("--- End Context ---")
	return b.String()
}

func buildReferences(selected []rerankCandidate) []Reference {
	refs := make([]Reference, 0, len(selected))
	for _, c := range selected {
		refs = append(refs, Reference{
			Path:       c.chunk.Path,
			ChunkIndex: c.chunk.ChunkIndex,
			Offset:     c.chunk.Offset,
			Score:      c.finalScore,
		})
	}
	return refs
}

// buildDebugInfo lists every reranked candidate; the first selectedCount were used in the prompt.
func buildDebugInfo(candidates []rerankCandidate, selectedCount int, timings Timings) *DebugInfo {
	chunks := make([]RetrievedChunk, 0, len(candidates))
	for i, c := range candidates {
		text := truncateRunes(c.chunk.Text, maxDebugTextLength)
		chunks = append(chunks, RetrievedChunk{
			ChunkID:      c.chunk.ID,
			Path:         c.chunk.Path,
			ChunkIndex:   c.chunk.ChunkIndex,
			ScoreVector:  c.vectorScore,
			ScoreLexical: c.lexicalScore,
			ScoreFinal:   c.finalScore,
			Text:         text,
			Rank:         i + 1,
			Selected:     i < selectedCount,
		})
	}
	return &DebugInfo{RetrievedChunks: chunks, Timings: timings}
}

// truncateRunes cuts s to at most n characters, marking a cut with "...".
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
