package rag

// AskRequest represents a RAG query request.
type AskRequest struct {
	// Question is the question to answer about the indexed codebase.
	Question string `json:"question"`
	// K optionally overrides the number of chunks stuffed into the prompt (max 20).
	K int `json:"k,omitempty"`
	// Debug enables debug mode, returning detailed retrieval information.
	Debug bool `json:"debug,omitempty"`
}

// Reference represents a reference to a chunk that was used in the answer.
type Reference struct {
	// Path is the file path relative to the source root.
	Path string `json:"path"`
	// ChunkIndex is the chunk index within the file.
	ChunkIndex int `json:"chunk_index"`
	// Offset is the character offset of the chunk within the file.
	Offset int `json:"offset"`
	// Score is the final ranking score of the chunk.
	Score float64 `json:"score"`
}

// AskResponse represents the response from a RAG query.
type AskResponse struct {
	// Answer is the generated answer from the LLM.
	Answer string `json:"answer"`
	// References are the chunks that were used to generate the answer.
	References []Reference `json:"references"`
	// Debug contains debug information when debug mode is enabled.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo contains detailed retrieval information for debugging and evaluation.
type DebugInfo struct {
	// RetrievedChunks contains all reranked candidates with scores and ranks.
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	// Timings contains per-stage latency in milliseconds.
	Timings Timings `json:"timings"`
}

// RetrievedChunk represents a retrieved chunk with scoring information.
type RetrievedChunk struct {
	// ChunkID is the stable chunk identifier.
	ChunkID string `json:"chunk_id"`
	// Path is the file path relative to the source root.
	Path string `json:"path"`
	// ChunkIndex is the chunk index within the file.
	ChunkIndex int `json:"chunk_index"`
	// ScoreVector is the vector similarity score.
	ScoreVector float64 `json:"score_vector"`
	// ScoreLexical is the lexical score.
	ScoreLexical float64 `json:"score_lexical"`
	// ScoreFinal is the combined final score.
	ScoreFinal float64 `json:"score_final"`
	// Text is the chunk text, truncated for display.
	Text string `json:"text"`
	// Rank is the rank after reranking (1-based).
	Rank int `json:"rank"`
	// Selected reports whether the chunk made it into the prompt.
	Selected bool `json:"selected"`
}

// Timings holds per-stage latency in milliseconds.
type Timings struct {
	RetrievalMs  int64 `json:"retrieval_ms"`
	GenerationMs int64 `json:"generation_ms"`
	TotalMs      int64 `json:"total_ms"`
}
