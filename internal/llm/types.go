package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks bigbrain/internal/llm Embedder,ChatModel

import "context"

// Message represents a single message in a chat conversation.
// This type is used by the RAG engine and other structured message consumers.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, the provider default applies.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// 0 leaves the provider default.
	Temperature float32
}

// Embedder turns texts into vectors, one per input text, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel generates a reply to a conversation.
type ChatModel interface {
	ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error)
}
