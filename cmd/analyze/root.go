package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"bigbrain/internal/analysis"
	"bigbrain/internal/config"
	"bigbrain/internal/contextutil"
)

// options holds the command-line flags. Only flags set explicitly override the loaded configuration.
type options struct {
	configFile        string
	source            string
	indexDir          string
	result            string
	question          string
	reportHTML        string
	chunkSize         int
	chunkOverlap      int
	skipHidden        bool
	gitignore         bool
	embeddingProvider string
	llmProvider       string
	vectorBackend     string
	topK              int
	logLevel          string
	verbose           bool
}

func newRootCommand() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "analyze [source-dir]",
		Short: "Ask a question about a codebase",
		Long: `Walks a source tree, splits every readable file into fixed-size chunks,
embeds them into a vector index and answers one question about the code.
The answer is written to the result file and summarized on standard output.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "path to a TOML config file (default $ANALYZE_CONFIG)")
	f.StringVar(&opts.source, "source", "", "source directory to analyze")
	f.StringVar(&opts.indexDir, "index-dir", "", "directory holding the vector index")
	f.StringVar(&opts.result, "result", "", "file the answer is written to")
	f.StringVarP(&opts.question, "question", "q", "", "question to ask about the codebase")
	f.StringVar(&opts.reportHTML, "report-html", "", "also write the answer as an HTML page")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "chunk size in characters")
	f.IntVar(&opts.chunkOverlap, "chunk-overlap", 0, "characters shared by consecutive chunks")
	f.BoolVar(&opts.skipHidden, "skip-hidden", false, "skip files and directories starting with a dot")
	f.BoolVar(&opts.gitignore, "gitignore", false, "skip paths matched by the root .gitignore")
	f.StringVar(&opts.embeddingProvider, "embedding-provider", "", "embedding provider: openai or local")
	f.StringVar(&opts.llmProvider, "llm-provider", "", "chat provider: anthropic, openai or local")
	f.StringVar(&opts.vectorBackend, "vector-backend", "", "vector store: local or qdrant")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "number of chunks used to answer (1-20)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd, opts
}

// override returns a config.Override applying the flags the user set and the positional source dir.
func (o *options) override(cmd *cobra.Command, args []string) config.Override {
	return func(cfg *config.Config) error {
		f := cmd.Flags()

		strs := []struct {
			flag string
			val  string
			dst  *string
		}{
			{"source", o.source, &cfg.SourceDir},
			{"index-dir", o.indexDir, &cfg.IndexDir},
			{"result", o.result, &cfg.ResultPath},
			{"question", o.question, &cfg.Question},
			{"report-html", o.reportHTML, &cfg.ReportHTMLPath},
			{"embedding-provider", o.embeddingProvider, &cfg.EmbeddingProvider},
			{"llm-provider", o.llmProvider, &cfg.LLMProvider},
			{"vector-backend", o.vectorBackend, &cfg.VectorBackend},
		}
		for _, s := range strs {
			if f.Changed(s.flag) {
				*s.dst = s.val
			}
		}

		ints := []struct {
			flag string
			val  int
			dst  *int
		}{
			{"chunk-size", o.chunkSize, &cfg.ChunkSize},
			{"chunk-overlap", o.chunkOverlap, &cfg.ChunkOverlap},
			{"top-k", o.topK, &cfg.TopK},
		}
		for _, i := range ints {
			if f.Changed(i.flag) {
				*i.dst = i.val
			}
		}

		if f.Changed("skip-hidden") {
			cfg.SkipHidden = o.skipHidden
		}
		if f.Changed("gitignore") {
			cfg.RespectGitignore = o.gitignore
		}

		if len(args) == 1 {
			if f.Changed("source") && o.source != args[0] {
				return fmt.Errorf("source given both as argument %q and --source %q", args[0], o.source)
			}
			cfg.SourceDir = args[0]
		}

		if f.Changed("log-level") {
			if err := cfg.LogLevel.UnmarshalText([]byte(o.logLevel)); err != nil {
				return fmt.Errorf("--log-level is invalid: %w", err)
			}
		}
		if o.verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		return nil
	}
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := config.Load(opts.configFile, opts.override(cmd, args))
	if err != nil {
		return errors.New(analysis.ExitError(fmt.Errorf("failed to load configuration: %w", err)))
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	logger.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx := contextutil.WithLogger(cmd.Context(), logger)

	backend, err := analysis.NewServiceBackend(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialize backend", "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close backend", "error", err)
		}
	}()

	analyzer, err := analysis.New(cfg, backend)
	if err != nil {
		return err
	}

	result, err := analyzer.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "analysis failed", "error", err)
		return errors.New(analysis.ExitError(err))
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result, cfg.ResultPath))
	return err
}

// newLogger configures structured logging with configurable level and format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
