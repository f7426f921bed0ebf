package llm

import (
	"context"
	"errors"
)

// countingEmbedder returns a one-element vector per text holding the text length,
// and records every call.
type countingEmbedder struct {
	calls [][]string
	err   error
}

func (e *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, append([]string(nil), texts...))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (e *countingEmbedder) embedded() int {
	n := 0
	for _, c := range e.calls {
		n += len(c)
	}
	return n
}

var errUpstream = errors.New("upstream unavailable")
