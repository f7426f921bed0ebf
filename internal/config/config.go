package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultQuestion is the question asked when none is configured.
const DefaultQuestion = "What type of codebase is this? Identify the main programming language and any frameworks used."

// Provider and backend names accepted by the configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"

	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for a single analysis run.
type Config struct {
	SourceDir      string
	IndexDir       string
	ResultPath     string
	ReportHTMLPath string
	Question       string

	ChunkSize        int
	ChunkOverlap     int
	SkipHidden       bool
	RespectGitignore bool

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingDimension int // 0 means infer from the first embedding batch
	EmbeddingAPIKey    string
	EmbedBatchSize     int
	EmbedRateLimit     float64 // batches per second, 0 disables pacing
	EmbedCacheSize     int

	LLMProvider  string
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	LLMMaxTokens int
	LLMAutoload  bool

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	TopK             int

	LogLevel  slog.Level
	LogFormat string
}

// fileConfig mirrors Config for the optional TOML file. Zero values are ignored.
type fileConfig struct {
	SourceDir      string `toml:"source_dir"`
	IndexDir       string `toml:"index_dir"`
	ResultPath     string `toml:"result_path"`
	ReportHTMLPath string `toml:"report_html_path"`
	Question       string `toml:"question"`

	Chunking struct {
		Size             int  `toml:"size"`
		Overlap          int  `toml:"overlap"`
		SkipHidden       bool `toml:"skip_hidden"`
		RespectGitignore bool `toml:"respect_gitignore"`
	} `toml:"chunking"`

	Embedding struct {
		Provider  string  `toml:"provider"`
		BaseURL   string  `toml:"base_url"`
		Model     string  `toml:"model"`
		Dimension int     `toml:"dimension"`
		BatchSize int     `toml:"batch_size"`
		RateLimit float64 `toml:"rate_limit"`
		CacheSize int     `toml:"cache_size"`
	} `toml:"embedding"`

	LLM struct {
		Provider  string `toml:"provider"`
		BaseURL   string `toml:"base_url"`
		Model     string `toml:"model"`
		MaxTokens int    `toml:"max_tokens"`
		Autoload  bool   `toml:"autoload"`
	} `toml:"llm"`

	VectorStore struct {
		Backend          string `toml:"backend"`
		QdrantURL        string `toml:"qdrant_url"`
		QdrantCollection string `toml:"qdrant_collection"`
		TopK             int    `toml:"top_k"`
	} `toml:"vector_store"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Default returns the configuration used when nothing else is set.
// The paths match the container layout the analyzer was first deployed with.
func Default() *Config {
	return &Config{
		SourceDir:          "/workspace/source",
		IndexDir:           "/workspace/vectordb",
		ResultPath:         "/workspace/analysis_result.txt",
		Question:           DefaultQuestion,
		ChunkSize:          1000,
		ChunkOverlap:       0,
		EmbeddingProvider:  ProviderOpenAI,
		EmbeddingBaseURL:   "https://api.openai.com/v1",
		EmbeddingModel:     "text-embedding-3-small",
		EmbedBatchSize:     64,
		EmbedCacheSize:     10000,
		LLMProvider:        ProviderAnthropic,
		LLMBaseURL:         "https://api.anthropic.com",
		LLMModel:           "claude-3-5-sonnet-latest",
		LLMMaxTokens:       1024,
		VectorBackend:      BackendLocal,
		QdrantURL:          "http://localhost:6333",
		QdrantCollection:   "codebase",
		TopK:               4,
		LogLevel:           slog.LevelInfo,
		LogFormat:          "text",
	}
}

// Override adjusts a loaded Config before credentials are resolved and values are validated.
// The CLI uses it to apply command-line flags.
type Override func(cfg *Config) error

// Load reads configuration from an optional TOML file, then environment variables,
// then applies overrides in order and returns a validated Config.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
// configFile may be empty, in which case ANALYZE_CONFIG is consulted.
func Load(configFile string, overrides ...Override) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv("ANALYZE_CONFIG")
	}
	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}

	// Credentials are read but never checked here; a missing key surfaces
	// as a failure from the provider call.
	cfg.EmbeddingAPIKey = providerKey(cfg.EmbeddingProvider)
	cfg.LLMAPIKey = providerKey(cfg.LLMProvider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile overlays non-zero values from a TOML file onto cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.SourceDir, fc.SourceDir)
	setString(&cfg.IndexDir, fc.IndexDir)
	setString(&cfg.ResultPath, fc.ResultPath)
	setString(&cfg.ReportHTMLPath, fc.ReportHTMLPath)
	setString(&cfg.Question, fc.Question)

	setInt(&cfg.ChunkSize, fc.Chunking.Size)
	setInt(&cfg.ChunkOverlap, fc.Chunking.Overlap)
	cfg.SkipHidden = cfg.SkipHidden || fc.Chunking.SkipHidden
	cfg.RespectGitignore = cfg.RespectGitignore || fc.Chunking.RespectGitignore

	setString(&cfg.EmbeddingProvider, fc.Embedding.Provider)
	setString(&cfg.EmbeddingBaseURL, fc.Embedding.BaseURL)
	setString(&cfg.EmbeddingModel, fc.Embedding.Model)
	setInt(&cfg.EmbeddingDimension, fc.Embedding.Dimension)
	setInt(&cfg.EmbedBatchSize, fc.Embedding.BatchSize)
	setInt(&cfg.EmbedCacheSize, fc.Embedding.CacheSize)
	if fc.Embedding.RateLimit != 0 {
		cfg.EmbedRateLimit = fc.Embedding.RateLimit
	}

	setString(&cfg.LLMProvider, fc.LLM.Provider)
	setString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setInt(&cfg.LLMMaxTokens, fc.LLM.MaxTokens)
	cfg.LLMAutoload = cfg.LLMAutoload || fc.LLM.Autoload

	setString(&cfg.VectorBackend, fc.VectorStore.Backend)
	setString(&cfg.QdrantURL, fc.VectorStore.QdrantURL)
	setString(&cfg.QdrantCollection, fc.VectorStore.QdrantCollection)
	setInt(&cfg.TopK, fc.VectorStore.TopK)

	if fc.Log.Level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(fc.Log.Level)); err != nil {
			return invalid("log.level", "%q is not a log level", fc.Log.Level)
		}
	}
	setString(&cfg.LogFormat, fc.Log.Format)

	return nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) error {
	cfg.SourceDir = getEnv("SOURCE_DIR", cfg.SourceDir)
	cfg.IndexDir = getEnv("INDEX_DIR", cfg.IndexDir)
	cfg.ResultPath = getEnv("RESULT_PATH", cfg.ResultPath)
	cfg.ReportHTMLPath = getEnv("REPORT_HTML_PATH", cfg.ReportHTMLPath)
	cfg.Question = getEnv("QUESTION", cfg.Question)

	cfg.EmbeddingProvider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider))
	cfg.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", cfg.EmbeddingBaseURL)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)

	cfg.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)

	cfg.VectorBackend = strings.ToLower(getEnv("VECTOR_BACKEND", cfg.VectorBackend))
	cfg.QdrantURL = getEnv("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantCollection = getEnv("QDRANT_COLLECTION", cfg.QdrantCollection)
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))

	ints := []struct {
		key string
		dst *int
	}{
		{"CHUNK_SIZE", &cfg.ChunkSize},
		{"CHUNK_OVERLAP", &cfg.ChunkOverlap},
		{"EMBEDDING_DIMENSION", &cfg.EmbeddingDimension},
		{"EMBED_BATCH_SIZE", &cfg.EmbedBatchSize},
		{"EMBED_CACHE_SIZE", &cfg.EmbedCacheSize},
		{"LLM_MAX_TOKENS", &cfg.LLMMaxTokens},
		{"TOP_K", &cfg.TopK},
	}
	for _, v := range ints {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalid(v.key, "must be a valid integer, got %q", raw)
		}
		*v.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SKIP_HIDDEN", &cfg.SkipHidden},
		{"RESPECT_GITIGNORE", &cfg.RespectGitignore},
		{"LLM_AUTOLOAD", &cfg.LLMAutoload},
	}
	for _, v := range bools {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return invalid(v.key, "must be a boolean, got %q", raw)
		}
		*v.dst = b
	}

	if raw := os.Getenv("EMBED_RATE_LIMIT"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid("EMBED_RATE_LIMIT", "must be a number, got %q", raw)
		}
		cfg.EmbedRateLimit = f
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return invalid("LOG_LEVEL", "%q is not a log level", raw)
		}
	}

	return nil
}

// providerKey returns the credential for the given provider from the environment.
func providerKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return getEnv("LLM_API_KEY", "dummy-key")
	}
}

// ErrInvalidInput marks configuration or run input that fails validation.
var ErrInvalidInput = errors.New("invalid input")

// FieldError names the configuration key whose value is invalid.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Is reports FieldError as ErrInvalidInput.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks value ranges and enumerations. Failures are *FieldError.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return invalid("SOURCE_DIR", "is required")
	}
	if c.IndexDir == "" {
		return invalid("INDEX_DIR", "is required")
	}
	if c.ResultPath == "" {
		return invalid("RESULT_PATH", "is required")
	}
	if strings.TrimSpace(c.Question) == "" {
		return invalid("QUESTION", "must not be empty")
	}
	if c.ChunkSize <= 0 {
		return invalid("CHUNK_SIZE", "must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return invalid("CHUNK_OVERLAP", "must be in [0, CHUNK_SIZE)")
	}
	if c.EmbeddingDimension < 0 {
		return invalid("EMBEDDING_DIMENSION", "must not be negative")
	}
	if c.EmbedBatchSize <= 0 {
		return invalid("EMBED_BATCH_SIZE", "must be greater than 0")
	}
	if c.EmbedRateLimit < 0 {
		return invalid("EMBED_RATE_LIMIT", "must not be negative")
	}
	if c.TopK <= 0 || c.TopK > 20 {
		return invalid("TOP_K", "must be between 1 and 20")
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderLocal:
	case ProviderAnthropic:
		return invalid("EMBEDDING_PROVIDER", "anthropic is not supported, use openai or local")
	default:
		return invalid("EMBEDDING_PROVIDER", "%q is unknown", c.EmbeddingProvider)
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderLocal:
	default:
		return invalid("LLM_PROVIDER", "%q is unknown", c.LLMProvider)
	}

	switch c.VectorBackend {
	case BackendLocal, BackendQdrant:
	default:
		return invalid("VECTOR_BACKEND", "%q is unknown", c.VectorBackend)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("LOG_FORMAT", "must be text or json")
	}

	return nil
}

// IndexDBPath returns the path of the SQLite index database inside IndexDir.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.IndexDir, "index.db")
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
