package indexer

// Chunk represents a contiguous window of one source file's text.
type Chunk struct {
	Path   string // Slash-separated path relative to the source root
	Index  int    // Chunk index within the file (starts at 0)
	Offset int    // Character offset of the first character within the file
	Text   string // Chunk text content, never trimmed
}

// FileInfo records one file that contributed to the corpus.
type FileInfo struct {
	Path   string
	Size   int64  // Content size in bytes
	Hash   string // SHA256 hex string of file content
	Chunks int    // Number of chunks produced (0 for empty files)
}

// Corpus is the ordered chunk sequence for a source tree, in file-then-position order.
type Corpus struct {
	Files  []FileInfo
	Chunks []Chunk
}

// Texts returns the chunk texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Chunks))
	for i, chunk := range c.Chunks {
		texts[i] = chunk.Text
	}
	return texts
}

// Index describes a built vector index.
type Index struct {
	Collection string
	VectorSize int // 0 when nothing was embedded
	Files      int
	Chunks     int
	Version    string
}

// Empty reports whether the index holds no chunks.
func (i Index) Empty() bool {
	return i.Chunks == 0
}
