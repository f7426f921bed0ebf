package source

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbrain/internal/contextutil"
)

// writeTree creates files (relative path -> content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func relPaths(files []ScannedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestScanner_Scan_VisitsEverythingByDefault(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":            "package main",
		".hidden":            "secret",
		".git/HEAD":          "ref: refs/heads/main",
		"pkg/util/util.go":   "package util",
		"pkg/util/data.bin":  "\x00\x01\x02",
		"docs/README.md":     "# docs",
		"docs/nested/a/b.md": "deep",
	})

	files, skipped, err := NewScanner(root, Options{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, skipped)

	assert.Equal(t, []string{
		".git/HEAD",
		".hidden",
		"docs/README.md",
		"docs/nested/a/b.md",
		"main.go",
		"pkg/util/data.bin",
		"pkg/util/util.go",
	}, relPaths(files))

	for _, f := range files {
		assert.FileExists(t, f.AbsPath)
	}
	assert.Equal(t, int64(len("package main")), files[4].Size)
}

func TestScanner_Scan_EmptyDirectory(t *testing.T) {
	files, skipped, err := NewScanner(t.TempDir(), Options{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, skipped)
}

func TestScanner_Scan_RootErrors(t *testing.T) {
	_, _, err := NewScanner(filepath.Join(t.TempDir(), "missing"), Options{}).Scan(context.Background())
	assert.Error(t, err)

	root := writeTree(t, map[string]string{"file.txt": "x"})
	_, _, err = NewScanner(filepath.Join(root, "file.txt"), Options{}).Scan(context.Background())
	assert.Error(t, err)
}

func TestScanner_Scan_SkipHidden(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":   "package main",
		".env":      "KEY=1",
		".git/HEAD": "ref",
		"a/.cache":  "x",
	})

	files, _, err := NewScanner(root, Options{SkipHidden: true}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, relPaths(files))
}

func TestScanner_Scan_RespectGitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":         "# build output\n\n/dist\nnode_modules/\n*.log\n!keep.log\nbuild/*.o\n",
		"dist/bundle.js":     "x",
		"src/dist/keep.js":   "x",
		"node_modules/a.js":  "x",
		"web/node_modules/b": "x",
		"app.log":            "x",
		"src/debug.log":      "x",
		"build/main.o":       "x",
		"build/main.c":       "x",
		"src/main.ts":        "x",
		"node_modules.txt":   "x",
	})

	files, _, err := NewScanner(root, Options{RespectGitignore: true}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		".gitignore",
		"build/main.c",
		"node_modules.txt",
		"src/dist/keep.js",
		"src/main.ts",
	}, relPaths(files))
}

func TestScanner_Scan_MissingGitignore(t *testing.T) {
	root := writeTree(t, map[string]string{"main.go": "package main"})

	files, _, err := NewScanner(root, Options{RespectGitignore: true}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, relPaths(files))
}

func TestScanner_Scan_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := writeTree(t, map[string]string{
		"real/file.txt": "content",
	})
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linkdir")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "file.txt"), filepath.Join(root, "linkfile")))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "dangling")))

	files, _, err := NewScanner(root, Options{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dangling", "linkfile", "real/file.txt"}, relPaths(files))
}

func TestScanner_Scan_UnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	root := writeTree(t, map[string]string{
		"ok.txt":       "fine",
		"locked/a.txt": "hidden",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, skipped, err := NewScanner(root, Options{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.txt"}, relPaths(files))
	require.Len(t, skipped, 1)
	assert.Equal(t, "locked", skipped[0].Path)
	assert.NotEmpty(t, skipped[0].Message)
}

func TestScanner_Scan_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewScanner(root, Options{}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileError_Error(t *testing.T) {
	e := FileError{Path: "a/b.txt", Message: "permission denied"}
	assert.Equal(t, "a/b.txt: permission denied", e.Error())
}

func TestScanner_Scan_NonRegularFileIsLogged(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "x"})
	ln, err := net.Listen("unix", filepath.Join(root, "b.sock"))
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx := contextutil.WithLogger(context.Background(), logger)

	files, skipped, err := NewScanner(root, Options{}).Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, relPaths(files))
	assert.Equal(t, []FileError{{Path: "b.sock", Message: "not a regular file"}}, skipped)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "path=b.sock")
}

func TestMergeWalkOrder(t *testing.T) {
	fe := func(paths ...string) []FileError {
		out := make([]FileError, 0, len(paths))
		for _, p := range paths {
			out = append(out, FileError{Path: p})
		}
		return out
	}

	tests := []struct {
		name string
		a, b []FileError
		want []FileError
	}{
		{name: "both empty", want: fe()},
		{name: "one side", a: fe("x"), want: fe("x")},
		{name: "interleaved", a: fe("b", "d/e"), b: fe("a.bin", "c", "z"), want: fe("a.bin", "b", "c", "d/e", "z")},
		// The walk enters directory "a" before visiting the sibling "a.txt".
		{name: "directory before dotted sibling", a: fe("a/locked"), b: fe("a.txt"), want: fe("a/locked", "a.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeWalkOrder(tt.a, tt.b))
		})
	}
}
