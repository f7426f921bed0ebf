package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Reference is a source location listed under the answer in the HTML report.
type Reference struct {
	Path       string
	ChunkIndex int
	Offset     int
}

// Page is the content of an HTML report.
type Page struct {
	Question   string
	Answer     string // Markdown
	References []Reference
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderHTML renders the page as a standalone HTML document.
// The answer is treated as Markdown; raw HTML inside it is not passed through.
func RenderHTML(page Page) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(page.Answer), &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Codebase analysis</title>\n</head>\n<body>\n")
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", html.EscapeString(page.Question))
	buf.Write(body.Bytes())

	if len(page.References) > 0 {
		buf.WriteString("<h2>Sources</h2>\n<ul>\n")
		for _, ref := range page.References {
			fmt.Fprintf(&buf, "<li><code>%s</code> chunk %d (offset %d)</li>\n",
				html.EscapeString(ref.Path), ref.ChunkIndex, ref.Offset)
		}
		buf.WriteString("</ul>\n")
	}

	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// WriteHTML renders the page and writes it to path, replacing any previous report.
func WriteHTML(path string, page Page) error {
	data, err := RenderHTML(page)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}
