package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"bigbrain/internal/contextutil"
)

// ScannedFile represents a file found during the walk.
type ScannedFile struct {
	RelPath string // Slash-separated path relative to the root (e.g., "cmd/main.go")
	AbsPath string // Path usable with os.Open
	Size    int64  // Size in bytes as reported by the walk
}

// FileError records a file or directory that could not be processed.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// MergeWalkOrder merges two FileError lists that are each in walk order into
// one list in walk order. Paths compare component by component, the way the
// walk visits sorted directory entries.
func MergeWalkOrder(a, b []FileError) []FileError {
	merged := make([]FileError, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if walkBefore(b[0].Path, a[0].Path) {
			merged = append(merged, b[0])
			b = b[1:]
		} else {
			merged = append(merged, a[0])
			a = a[1:]
		}
	}
	merged = append(merged, a...)
	return append(merged, b...)
}

func walkBefore(p, q string) bool {
	return slices.Compare(strings.Split(p, "/"), strings.Split(q, "/")) < 0
}

// Options controls which entries the scanner skips. The zero value visits everything.
type Options struct {
	// SkipHidden skips files and directories whose name starts with a dot.
	SkipHidden bool
	// RespectGitignore loads <root>/.gitignore and skips matching entries.
	RespectGitignore bool
}

// Scanner walks a source tree.
type Scanner struct {
	root  string
	opts  Options
	rules []ignoreRule
}

// NewScanner creates a scanner rooted at root.
func NewScanner(root string, opts Options) *Scanner {
	return &Scanner{root: root, opts: opts}
}

// Scan walks the tree and returns every file found, in lexical order within each directory.
// Entries that cannot be accessed are returned as FileErrors and the walk continues.
// The returned error is non-nil only when the root itself is unusable or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) ([]ScannedFile, []FileError, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(s.root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access source root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source root %s is not a directory", s.root)
	}

	if s.opts.RespectGitignore {
		rules, err := loadGitignore(filepath.Join(s.root, ".gitignore"))
		if err != nil {
			logger.WarnContext(ctx, "could not load .gitignore", "error", err)
		}
		s.rules = rules
	}

	var files []ScannedFile
	var skipped []FileError

	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			relPath = p
		}
		// Normalize relative path (use forward slashes for consistency)
		relPath = filepath.ToSlash(relPath)

		if err != nil {
			// Unreadable directory or entry removed mid-walk: record and move on.
			logger.WarnContext(ctx, "failed to access path", "path", relPath, "error", err)
			skipped = append(skipped, FileError{Path: relPath, Message: err.Error()})
			if d != nil && d.IsDir() && relPath != "." {
				return filepath.SkipDir
			}
			return nil
		}

		if relPath == "." {
			return nil
		}

		if s.shouldIgnore(relPath, d.IsDir()) {
			logger.DebugContext(ctx, "ignoring path", "path", relPath)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		var size int64
		switch mode := d.Type(); {
		case mode&fs.ModeSymlink != 0:
			// Symlinked directories are not followed; symlinked files are read through.
			// A dangling link stays in the list so the read failure gets recorded.
			if target, statErr := os.Stat(p); statErr == nil {
				if target.IsDir() {
					return nil
				}
				size = target.Size()
			}
		case !mode.IsRegular():
			fe := FileError{Path: relPath, Message: "not a regular file"}
			logger.WarnContext(ctx, "skipping file", "path", fe.Path, "error", fe.Message)
			skipped = append(skipped, fe)
			return nil
		default:
			if fi, infoErr := d.Info(); infoErr == nil {
				size = fi.Size()
			}
		}

		files = append(files, ScannedFile{
			RelPath: relPath,
			AbsPath: p,
			Size:    size,
		})
		return nil
	})
	if err != nil {
		return files, skipped, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	logger.DebugContext(ctx, "scan completed", "root", s.root, "files", len(files), "skipped", len(skipped))
	return files, skipped, nil
}

func (s *Scanner) shouldIgnore(relPath string, isDir bool) bool {
	base := path.Base(relPath)
	if s.opts.SkipHidden && strings.HasPrefix(base, ".") {
		return true
	}
	for _, rule := range s.rules {
		if rule.matches(relPath, base, isDir) {
			return true
		}
	}
	return false
}

// ignoreRule is a single .gitignore pattern.
type ignoreRule struct {
	pattern  string
	anchored bool // Pattern started with "/" and only matches from the root
	dirOnly  bool // Pattern ended with "/" and only matches directories
}

func (r ignoreRule) matches(relPath, base string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.anchored || strings.Contains(r.pattern, "/") {
		matched, _ := path.Match(r.pattern, relPath)
		return matched
	}
	matched, _ := path.Match(r.pattern, base)
	return matched
}

// loadGitignore reads ignore rules, dropping blank lines, comments and negations.
func loadGitignore(p string) ([]ignoreRule, error) {
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no .gitignore at %s", p)
		}
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var rules []ignoreRule
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		rule := ignoreRule{pattern: line}
		if strings.HasPrefix(rule.pattern, "/") {
			rule.anchored = true
			rule.pattern = strings.TrimPrefix(rule.pattern, "/")
		}
		if strings.HasSuffix(rule.pattern, "/") {
			rule.dirOnly = true
			rule.pattern = strings.TrimSuffix(rule.pattern, "/")
		}
		if rule.pattern == "" {
			continue
		}
		rules = append(rules, rule)
	}

	return rules, scanner.Err()
}
