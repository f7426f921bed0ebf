package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResult_CreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "analysis_result.txt")

	require.NoError(t, WriteResult(path, "A Go CLI."))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A Go CLI.", string(data))
}

func TestWriteResult_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_result.txt")

	require.NoError(t, WriteResult(path, "first answer, which is longer"))
	require.NoError(t, WriteResult(path, "second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteResult_EmptyAnswer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_result.txt")

	require.NoError(t, WriteResult(path, ""))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestWriteResult_ParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := WriteResult(filepath.Join(blocker, "analysis_result.txt"), "answer")
	assert.Error(t, err)
}
