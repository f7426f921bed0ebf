package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"bigbrain/internal/analysis"
)

// maxListedSkips bounds how many skipped files the summary names.
const maxListedSkips = 10

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
)

// renderSummary formats the human-readable outcome of a run.
func renderSummary(result *analysis.Result, resultPath string) string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("Codebase type:"))
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(result.Answer))
	b.WriteString("\n\n")

	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d files, %d chunks, %d skipped in %s",
		result.Stats.FilesProcessed,
		result.Stats.Chunks,
		len(result.FileErrors),
		result.Duration.Round(time.Millisecond),
	)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Result written to " + resultPath))

	if len(result.FileErrors) > 0 {
		b.WriteString("\n\n")
		b.WriteString(warnStyle.Render("Skipped files:"))
		for i, fe := range result.FileErrors {
			if i == maxListedSkips {
				fmt.Fprintf(&b, "\n  ... and %d more", len(result.FileErrors)-maxListedSkips)
				break
			}
			fmt.Fprintf(&b, "\n  %s: %s", fe.Path, fe.Message)
		}
	}

	return b.String()
}
