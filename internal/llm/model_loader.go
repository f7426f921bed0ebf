package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bigbrain/internal/contextutil"
)

// ModelLoader asks a llama.cpp router to load a model before the first chat
// request, then waits until the router reports it in cache.
type ModelLoader struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// NewModelLoader returns a loader for the router at baseURL, which may carry
// a /v1 suffix. It polls once a second for up to 30 seconds.
func NewModelLoader(baseURL string) *ModelLoader {
	return &ModelLoader{
		baseURL:      serverRoot(baseURL),
		client:       newHTTPClient(),
		pollInterval: time.Second,
		maxAttempts:  30,
	}
}

// LoadModelRequest is the /models/load request body.
type LoadModelRequest struct {
	Model     string   `json:"model"`
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// LoadModelResponse is the /models/load response body.
type LoadModelResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ModelStatus is one entry of the router's /models listing.
type ModelStatus struct {
	ID      string `json:"id"`
	InCache bool   `json:"in_cache"`
	Status  struct {
		Value    string `json:"value"`
		ExitCode *int   `json:"exit_code,omitempty"`
		Failed   *bool  `json:"failed,omitempty"`
	} `json:"status"`
}

// ModelsResponse is the /models response body.
type ModelsResponse struct {
	Data []ModelStatus `json:"data"`
}

// failure reports the router's load failure for the model, if any.
func (s *ModelStatus) failure() error {
	if s.Status.Failed == nil || !*s.Status.Failed {
		return nil
	}
	code := 0
	if s.Status.ExitCode != nil {
		code = *s.Status.ExitCode
	}
	return fmt.Errorf("model %s failed to load with exit code %d", s.ID, code)
}

// status returns the router's entry for model, or nil when it is not listed.
func (ml *ModelLoader) status(ctx context.Context, model string) (*ModelStatus, error) {
	var listing ModelsResponse
	if err := doJSON(ctx, ml.client, http.MethodGet, ml.baseURL+"/models", nil, nil, &listing); err != nil {
		return nil, fmt.Errorf("failed to list router models: %w", err)
	}
	for i := range listing.Data {
		if listing.Data[i].ID == model {
			return &listing.Data[i], nil
		}
	}
	return nil, nil
}

// IsModelLoaded reports whether the router already holds model in cache.
func (ml *ModelLoader) IsModelLoaded(ctx context.Context, model string) (bool, error) {
	s, err := ml.status(ctx, model)
	if err != nil {
		return false, err
	}
	return s != nil && s.InCache, nil
}

// LoadModel makes sure model is in the router's cache. A model already in
// cache returns at once. Otherwise the load is requested and /models is
// polled until the model is cached, its load fails, or maxAttempts polls pass.
func (ml *ModelLoader) LoadModel(ctx context.Context, model string, extraArgs []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if loaded, err := ml.IsModelLoaded(ctx, model); err != nil {
		// The load request below reports a router that is really down.
		logger.WarnContext(ctx, "model status unavailable", "model", model, "error", err)
	} else if loaded {
		logger.DebugContext(ctx, "model already loaded", "model", model)
		return nil
	}

	var resp LoadModelResponse
	req := LoadModelRequest{Model: model, ExtraArgs: extraArgs}
	if err := doJSON(ctx, ml.client, http.MethodPost, ml.baseURL+"/models/load", nil, req, &resp); err != nil {
		return fmt.Errorf("failed to request model load: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("model load failed: %s", resp.Error)
	}

	logger.InfoContext(ctx, "waiting for model to load", "model", model)
	for range ml.maxAttempts {
		if s, err := ml.status(ctx, model); err == nil && s != nil {
			if s.InCache {
				logger.InfoContext(ctx, "model loaded", "model", model)
				return nil
			}
			if err := s.failure(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ml.pollInterval):
		}
	}
	return fmt.Errorf("model %s did not load within %s", model, time.Duration(ml.maxAttempts)*ml.pollInterval)
}
