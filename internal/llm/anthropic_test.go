package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicClient_ChatWithMessages(t *testing.T) {
	tests := []struct {
		name       string
		params     ChatParams
		serverResp func(t *testing.T) http.HandlerFunc
		wantReply  string
		wantErr    string
	}{
		{
			name: "system prompt lifted and headers set",
			serverResp: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					if r.URL.Path != "/v1/messages" {
						t.Errorf("expected /v1/messages, got %s", r.URL.Path)
					}
					if r.Header.Get("x-api-key") != "test-key" {
						t.Errorf("x-api-key = %q, want test-key", r.Header.Get("x-api-key"))
					}
					if r.Header.Get("anthropic-version") != anthropicVersion {
						t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
					}

					var req messagesRequest
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						t.Errorf("failed to decode request: %v", err)
						return
					}
					if req.System != "You analyze codebases." {
						t.Errorf("System = %q", req.System)
					}
					if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
						t.Errorf("Messages = %+v, want one user message", req.Messages)
					}
					if req.MaxTokens != anthropicDefaultMaxTokens {
						t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, anthropicDefaultMaxTokens)
					}
					if req.Model != "claude-test" {
						t.Errorf("Model = %q, want claude-test", req.Model)
					}

					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"A Go "},{"type":"text","text":"service."}],"stop_reason":"end_turn"}`))
				}
			},
			wantReply: "A Go service.",
		},
		{
			name:   "explicit params win",
			params: ChatParams{Model: "claude-other", MaxTokens: 50},
			serverResp: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					var req messagesRequest
					_ = json.NewDecoder(r.Body).Decode(&req)
					if req.Model != "claude-other" || req.MaxTokens != 50 {
						t.Errorf("request model=%q max_tokens=%d", req.Model, req.MaxTokens)
					}
					_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
				}
			},
			wantReply: "ok",
		},
		{
			name: "api error body",
			serverResp: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
				}
			},
			wantErr: "invalid x-api-key",
		},
		{
			name: "non-json error",
			serverResp: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
					_, _ = w.Write([]byte("upstream down"))
				}
			},
			wantErr: "bad status 502",
		},
		{
			name: "no text content",
			serverResp: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"content":[]}`))
				}
			},
			wantErr: "no text content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.serverResp(t))
			defer server.Close()

			client := NewAnthropicClient(server.URL+"/", "test-key", "claude-test")
			reply, err := client.ChatWithMessages(context.Background(), []Message{
				{Role: "system", Content: "You analyze codebases."},
				{Role: "user", Content: "What is this?"},
			}, tt.params)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ChatWithMessages() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChatWithMessages() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("ChatWithMessages() reply = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}
