package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"http://localhost:8080", "embeddings", "http://localhost:8080/v1/embeddings"},
		{"http://localhost:8080/", "embeddings", "http://localhost:8080/v1/embeddings"},
		{"https://api.openai.com/v1", "chat/completions", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "/chat/completions", "https://api.openai.com/v1/chat/completions"},
	}

	for _, tt := range tests {
		if got := endpoint(tt.base, tt.path); got != tt.want {
			t.Errorf("endpoint(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestDoJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name       string
		method     string
		in         any
		status     int
		body       string
		wantErr    string
		wantName   string
		wantCTType string
	}{
		{
			name:       "post with body",
			method:     http.MethodPost,
			in:         payload{Name: "chunk"},
			status:     http.StatusOK,
			body:       `{"name":"ok"}`,
			wantName:   "ok",
			wantCTType: "application/json",
		},
		{
			name:     "get without body",
			method:   http.MethodGet,
			status:   http.StatusOK,
			body:     `{"name":"listing"}`,
			wantName: "listing",
		},
		{
			name:       "error status keeps body",
			method:     http.MethodPost,
			in:         payload{},
			status:     http.StatusUnauthorized,
			body:       "invalid api key\n",
			wantErr:    "bad status 401: invalid api key",
			wantCTType: "application/json",
		},
		{
			name:    "undecodable reply",
			method:  http.MethodGet,
			status:  http.StatusOK,
			body:    "<html>",
			wantErr: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method {
					t.Errorf("method = %s, want %s", r.Method, tt.method)
				}
				if got := r.Header.Get("Content-Type"); got != tt.wantCTType {
					t.Errorf("Content-Type = %q, want %q", got, tt.wantCTType)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer k" {
					t.Errorf("Authorization = %q, want Bearer k", got)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var out payload
			err := doJSON(context.Background(), server.Client(), tt.method, server.URL, bearer("k"), tt.in, &out)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("doJSON() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("doJSON() error = %v", err)
			}
			if out.Name != tt.wantName {
				t.Errorf("decoded name = %q, want %q", out.Name, tt.wantName)
			}
		})
	}
}
