package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"bigbrain/internal/config"
	"bigbrain/internal/contextutil"
	"bigbrain/internal/rag"
	"bigbrain/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves the OpenAI-compatible embeddings and chat endpoints.
type fakeProvider struct {
	mu          sync.Mutex
	embedInputs int
	embedCalls  int
	chatCalls   int
	lastPrompt  string
	reply       string
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode embeddings request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		p.embedCalls++
		p.embedInputs += len(req.Input)
		p.mu.Unlock()

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			data[i] = item{Index: i, Embedding: []float64{
				float64(strings.Count(text, "package")) + 0.1,
				float64(strings.Count(text, "print")) + 0.1,
				0.1,
			}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		p.chatCalls++
		if n := len(req.Messages); n > 0 {
			p.lastPrompt = req.Messages[n-1].Content
		}
		p.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": p.reply}},
			},
		})
	})
	return mux
}

func localConfig(t *testing.T, sourceDir, baseURL string) *config.Config {
	t.Helper()
	cfg := testConfig(t, sourceDir)
	cfg.EmbeddingProvider = config.ProviderLocal
	cfg.EmbeddingBaseURL = baseURL
	cfg.EmbeddingModel = "test-embed"
	cfg.LLMProvider = config.ProviderLocal
	cfg.LLMBaseURL = baseURL + "/v1"
	cfg.LLMModel = "test-chat"
	cfg.VectorBackend = config.BackendLocal
	return cfg
}

func TestServiceBackend_EndToEnd(t *testing.T) {
	provider := &fakeProvider{reply: "A small Go and Python codebase."}
	srv := httptest.NewServer(provider.handler(t))
	defer srv.Close()

	root := writeSourceTree(t, map[string]string{
		"main.go":   "package main\n\nfunc main() {}\n",
		"script.py": "print('hello')\n",
	})
	cfg := localConfig(t, root, srv.URL)
	ctx := context.Background()

	backend, err := NewServiceBackend(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	a, err := New(cfg, backend)
	require.NoError(t, err)

	result, err := a.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "A small Go and Python codebase.", result.Answer)
	assert.Equal(t, 2, result.Index.Chunks)
	assert.Equal(t, 3, result.Index.VectorSize)
	assert.Len(t, result.References, 2)

	assert.Equal(t, 1, provider.chatCalls)
	assert.Contains(t, provider.lastPrompt, "File: main.go")
	assert.Contains(t, provider.lastPrompt, "File: script.py")
	assert.Contains(t, provider.lastPrompt, "Question: "+config.DefaultQuestion)
	assert.Equal(t, 3, provider.embedInputs, "two chunks plus the question")

	count, err := storage.NewChunkRepo(backend.db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	version, err := storage.NewRunRepo(backend.db).GetMeta(ctx, storage.MetaIndexVersion)
	require.NoError(t, err)
	assert.Equal(t, result.Stats.IndexVersion, version)

	// A second run over the same tree rebuilds the index without new upstream embeddings.
	result, err = a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, provider.embedInputs)
	assert.Equal(t, 2, result.Index.Chunks)

	count, err = storage.NewChunkRepo(backend.db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "rebuild must not duplicate chunks")
}

func TestServiceBackend_EmptyTreeMakesNoCalls(t *testing.T) {
	provider := &fakeProvider{reply: "unused"}
	srv := httptest.NewServer(provider.handler(t))
	defer srv.Close()

	cfg := localConfig(t, t.TempDir(), srv.URL)
	ctx := context.Background()

	backend, err := NewServiceBackend(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	a, err := New(cfg, backend)
	require.NoError(t, err)

	result, err := a.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, rag.NoContextAnswer, result.Answer)
	assert.Zero(t, provider.embedCalls)
	assert.Zero(t, provider.chatCalls)
}

func TestServiceBackend_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := localConfig(t, writeSourceTree(t, map[string]string{"main.go": "package main"}), srv.URL)
	ctx := context.Background()

	backend, err := NewServiceBackend(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	a, err := New(cfg, backend)
	require.NoError(t, err)

	_, err = a.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Contains(t, err.Error(), "401")
	assert.NoFileExists(t, cfg.ResultPath)
}

func TestNewServiceBackend_RejectsAnthropicEmbeddings(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.EmbeddingProvider = config.ProviderAnthropic

	_, err := NewServiceBackend(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceBackend_DebugLogsRetrieval(t *testing.T) {
	provider := &fakeProvider{reply: "A Go codebase.\n"}
	srv := httptest.NewServer(provider.handler(t))
	defer srv.Close()

	root := writeSourceTree(t, map[string]string{"main.go": "package main\n\n// " + strings.Repeat("é", 400) + "\n"})
	cfg := localConfig(t, root, srv.URL)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := contextutil.WithLogger(context.Background(), logger)

	backend, err := NewServiceBackend(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	a, err := New(cfg, backend)
	require.NoError(t, err)
	result, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A Go codebase.\n", result.Answer)
	written, err := os.ReadFile(cfg.ResultPath)
	require.NoError(t, err)
	assert.Equal(t, "A Go codebase.\n", string(written), "answer is written as returned")

	var retrieved []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["msg"] == "retrieved chunk" {
			retrieved = append(retrieved, record)
		}
	}
	require.Len(t, retrieved, 1)
	assert.Equal(t, "main.go", retrieved[0]["path"])
	assert.Equal(t, true, retrieved[0]["selected"])
	text, _ := retrieved[0]["text"].(string)
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.Contains(t, logs.String(), `"msg":"answer timings"`)
}
