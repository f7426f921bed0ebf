package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"

	"bigbrain/internal/contextutil"
	"bigbrain/internal/source"
)

// Collect reads and chunks every scanned file in order.
// A file that cannot be read as text is logged, recorded as a FileError and skipped;
// the remaining files are still processed. The error return is reserved for cancellation.
func Collect(ctx context.Context, files []source.ScannedFile, chunker *FixedSizeChunker) (*Corpus, []source.FileError, error) {
	logger := contextutil.LoggerFromContext(ctx)

	corpus := &Corpus{}
	var skipped []source.FileError

	for _, file := range files {
		select {
		case <-ctx.Done():
			return corpus, skipped, ctx.Err()
		default:
		}

		content, err := source.ReadText(file.AbsPath)
		if err != nil {
			logger.WarnContext(ctx, "failed to process file", "path", file.RelPath, "error", err)
			skipped = append(skipped, source.FileError{Path: file.RelPath, Message: err.Error()})
			continue
		}

		chunks := chunker.Split(file.RelPath, content)
		hash := sha256.Sum256([]byte(content))

		corpus.Files = append(corpus.Files, FileInfo{
			Path:   file.RelPath,
			Size:   int64(len(content)),
			Hash:   fmt.Sprintf("%x", hash),
			Chunks: len(chunks),
		})
		corpus.Chunks = append(corpus.Chunks, chunks...)

		logger.DebugContext(ctx, "chunked file", "path", file.RelPath, "chunks", len(chunks))
	}

	logger.InfoContext(ctx, "corpus collected",
		"files", len(corpus.Files),
		"chunks", len(corpus.Chunks),
		"skipped", len(skipped),
	)
	return corpus, skipped, nil
}
