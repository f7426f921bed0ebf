package rag

import (
	"sort"
	"strings"
	"unicode"

	"bigbrain/internal/storage"
	"bigbrain/internal/vectorstore"
)

const (
	lexicalLengthScale = float32(10.0)
	maxLexicalScore    = float32(0.4)
	pathMatchBonus     = float32(0.1)
	// lexicalWeight scales the lexical score before it is added to the vector score.
	lexicalWeight = 0.5
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
	"what": {}, "which": {}, "this": {}, "any": {}, "used": {},
}

// rerankCandidate is a search hit joined with its stored chunk.
type rerankCandidate struct {
	result       vectorstore.SearchResult
	chunk        *storage.ChunkRecord
	vectorScore  float64
	lexicalScore float64
	finalScore   float64
	originalRank int
}

// rerank scores candidates by vector similarity plus weighted lexical overlap and sorts them
// best first. Equal scores keep their vector order.
func rerank(question string, candidates []rerankCandidate) {
	for i := range candidates {
		c := &candidates[i]
		c.vectorScore = float64(c.result.Score)
		c.lexicalScore = float64(lexicalScore(question, c.chunk.Text, c.chunk.Path))
		c.finalScore = c.vectorScore + lexicalWeight*c.lexicalScore
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].finalScore > candidates[j].finalScore
	})
}

// lexicalScore rates how well a chunk's words cover the query, in [0, maxLexicalScore].
// Term hits are normalized by chunk length so long chunks do not win by volume,
// and each query term that names part of the file path adds pathMatchBonus.
func lexicalScore(query, chunkText, path string) float32 {
	terms := filterStopwords(tokenize(query))
	words := tokenize(chunkText)
	if len(terms) == 0 || len(words) == 0 {
		return 0
	}

	freq := make(map[string]int, len(words))
	for _, w := range words {
		freq[w]++
	}
	hits := 0
	for _, term := range terms {
		hits += freq[term]
	}

	score := float32(hits) / float32(1+len(words)) * lexicalLengthScale
	score += float32(pathOverlap(terms, path)) * pathMatchBonus
	return min(max(score, 0), maxLexicalScore)
}

// pathOverlap counts the query terms that appear as a path component token.
func pathOverlap(terms []string, path string) int {
	parts := make(map[string]struct{})
	for _, token := range tokenize(path) {
		parts[token] = struct{}{}
	}
	n := 0
	for _, term := range terms {
		if _, ok := parts[term]; ok {
			n++
		}
	}
	return n
}

// tokenize lowercases text and splits it on anything but letters and digits.
// It returns nil when text holds no tokens.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	var kept []string
	for _, token := range tokens {
		if _, stop := lexicalStopwords[token]; !stop {
			kept = append(kept, token)
		}
	}
	return kept
}
