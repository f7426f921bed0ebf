package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	page := Page{
		Question: "What <kind> of codebase?",
		Answer:   "This is a **Go** service.\n\n| Language | Share |\n|---|---|\n| Go | 90% |\n\n~~Python~~",
		References: []Reference{
			{Path: "cmd/main.go", ChunkIndex: 0, Offset: 0},
			{Path: "go.mod", ChunkIndex: 1, Offset: 1000},
		},
	}

	out, err := RenderHTML(page)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<h1>What &lt;kind&gt; of codebase?</h1>")
	assert.Contains(t, html, "<strong>Go</strong>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<del>Python</del>")
	assert.Contains(t, html, "<code>go.mod</code> chunk 1 (offset 1000)")
}

func TestRenderHTML_NoReferences(t *testing.T) {
	out, err := RenderHTML(Page{Question: "q", Answer: "plain"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "Sources")
}

func TestRenderHTML_DropsRawHTML(t *testing.T) {
	out, err := RenderHTML(Page{Question: "q", Answer: "<script>alert(1)</script>"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "index.html")

	require.NoError(t, WriteHTML(path, Page{Question: "q", Answer: "# Title"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Title</h1>")
}
