package llm

import (
	"context"
	"fmt"
	"net/http"
)

// EmbeddingsClient is the Embedder for a local OpenAI-compatible /v1/embeddings
// endpoint.
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string

	// ExpectedSize is the vector dimension every response must have.
	// Zero accepts the size of the first vector returned.
	ExpectedSize int

	client *http.Client
}

// NewEmbeddingsClient returns an embeddings client for model.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       newHTTPClient(),
	}
}

// EmbeddingsRequest is the /v1/embeddings request body.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData is one vector in an embeddings response.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the /v1/embeddings response body.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedTexts implements Embedder. It returns one vector per text, in input
// order, and fails unless every vector has the same non-zero size.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	var resp EmbeddingsResponse
	req := EmbeddingsRequest{Model: c.Model, Input: texts}
	if err := doJSON(ctx, c.client, http.MethodPost, endpoint(c.BaseURL, "embeddings"), bearer(c.APIKey), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	dim := c.ExpectedSize
	if dim == 0 {
		dim = len(resp.Data[0].Embedding)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 || len(d.Embedding) != dim {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(d.Embedding), dim)
		}
		vectors[i] = toFloat32(d.Embedding)
	}
	return vectors, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
