package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bigbrain/internal/config"
	"bigbrain/internal/contextutil"
	"bigbrain/internal/indexer"
	"bigbrain/internal/rag"
	"bigbrain/internal/report"
	"bigbrain/internal/source"
)

// Backend builds a vector index from a corpus and answers questions against it.
type Backend interface {
	// BuildIndex replaces the stored index with the corpus. skipped lists files that could not be read.
	BuildIndex(ctx context.Context, corpus *indexer.Corpus, skipped []source.FileError) (indexer.Index, error)
	// Answer answers one question using the index.
	Answer(ctx context.Context, index indexer.Index, question string) (rag.AskResponse, error)
}

// Result is the outcome of one analysis run.
type Result struct {
	Answer     string
	Index      indexer.Index
	Stats      indexer.CoverageStats
	FileErrors []source.FileError
	References []rag.Reference
	Duration   time.Duration
}

// Analyzer runs the walk, chunk, index, answer and write steps for one configuration.
type Analyzer struct {
	cfg     *config.Config
	backend Backend
	scanner *source.Scanner
	chunker *indexer.FixedSizeChunker
}

// New validates the run inputs and returns an Analyzer.
func New(cfg *config.Config, backend Backend) (*Analyzer, error) {
	if cfg == nil {
		return nil, &ValidationError{Field: "config", Message: "cannot be nil"}
	}
	if backend == nil {
		return nil, &ValidationError{Field: "backend", Message: "cannot be nil"}
	}
	if strings.TrimSpace(cfg.Question) == "" {
		return nil, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	if cfg.ResultPath == "" {
		return nil, &ValidationError{Field: "result_path", Message: "cannot be empty"}
	}

	chunker, err := indexer.NewFixedSizeChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, &ValidationError{Field: "chunk_size", Message: err.Error()}
	}

	return &Analyzer{
		cfg:     cfg,
		backend: backend,
		scanner: source.NewScanner(cfg.SourceDir, source.Options{
			SkipHidden:       cfg.SkipHidden,
			RespectGitignore: cfg.RespectGitignore,
		}),
		chunker: chunker,
	}, nil
}

// Run analyzes the source tree and writes the answer to the configured result path.
// Unreadable files are skipped and reported in Result.FileErrors. Any other failure aborts the
// run before the result file is written.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	logger.InfoContext(ctx, "analysis started", "source_dir", a.cfg.SourceDir, "index_dir", a.cfg.IndexDir)

	files, dirErrors, err := a.scanner.Scan(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to scan source")
	}

	corpus, fileErrors, err := indexer.Collect(ctx, files, a.chunker)
	if err != nil {
		return nil, WrapError(err, "failed to collect corpus")
	}

	skipped := source.MergeWalkOrder(dirErrors, fileErrors)
	stats := indexer.ComputeStats(corpus, len(skipped), a.cfg.EmbeddingModel, a.chunker)
	logger.InfoContext(ctx, "corpus statistics",
		"files_processed", stats.FilesProcessed,
		"files_with_0_chunks", stats.FilesWith0Chunks,
		"files_skipped", stats.FilesSkipped,
		"chunks", stats.Chunks,
		"chunk_length_mean", stats.ChunkLengthStats.Mean,
		"chunk_length_p95", stats.ChunkLengthStats.P95,
		"index_version", stats.IndexVersion,
	)

	index, err := a.backend.BuildIndex(ctx, corpus, skipped)
	if err != nil {
		return nil, WrapExternal(err, "failed to build index")
	}

	resp, err := a.backend.Answer(ctx, index, a.cfg.Question)
	if err != nil {
		return nil, WrapExternal(err, "failed to answer question")
	}

	if err := report.WriteResult(a.cfg.ResultPath, resp.Answer); err != nil {
		return nil, WrapError(err, "failed to write result")
	}
	logger.InfoContext(ctx, "result written", "path", a.cfg.ResultPath, "answer_length", len(resp.Answer))

	if a.cfg.ReportHTMLPath != "" {
		if err := report.WriteHTML(a.cfg.ReportHTMLPath, htmlPage(a.cfg.Question, resp)); err != nil {
			return nil, WrapError(err, "failed to write HTML report")
		}
		logger.InfoContext(ctx, "HTML report written", "path", a.cfg.ReportHTMLPath)
	}

	result := &Result{
		Answer:     resp.Answer,
		Index:      index,
		Stats:      stats,
		FileErrors: skipped,
		References: resp.References,
		Duration:   time.Since(start),
	}

	logger.InfoContext(ctx, "analysis completed",
		"files", stats.FilesProcessed,
		"skipped", len(skipped),
		"chunks", index.Chunks,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func htmlPage(question string, resp rag.AskResponse) report.Page {
	page := report.Page{Question: question, Answer: resp.Answer}
	for _, ref := range resp.References {
		page.References = append(page.References, report.Reference{
			Path:       ref.Path,
			ChunkIndex: ref.ChunkIndex,
			Offset:     ref.Offset,
		})
	}
	return page
}

// ExitError describes err for the CLI, naming the error class.
func ExitError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("cancelled: %v", err)
	case errors.Is(err, ErrInvalidInput):
		return fmt.Sprintf("invalid input: %v", err)
	case errors.Is(err, ErrExternalService):
		return fmt.Sprintf("external service failed: %v", err)
	default:
		return err.Error()
	}
}
