// Package report renders analysis reports in several output formats
// and archives them in a local history database.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/tasklens/tasklens/internal/mcp"
)

// Report is one completed analysis run.
type Report struct {
	Timestamp time.Time  `json:"timestamp"`
	Model     string     `json:"model"`
	TaskCount int        `json:"task_count"`
	Tasks     []mcp.Task `json:"tasks"`
	Analysis  string     `json:"analysis"`
	Metadata  Metadata   `json:"metadata"`
}

// Metadata records how the analysis was produced.
type Metadata struct {
	ToolsEnabled    bool    `json:"tools_enabled"`
	ToolCallCount   int     `json:"tool_calls_count"`
	DurationSeconds float64 `json:"analysis_duration_seconds"`
}

// Format selects a report output format.
type Format int

const (
	FormatMarkdown Format = iota
	FormatText
	FormatJSON
	FormatHTML
)

// FormatFromPath picks the output format from a file extension.
// Unknown extensions default to Markdown.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".txt", ".text":
		return FormatText
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatMarkdown
	}
}

// String returns the format name used in logs and the history table.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	case FormatHTML:
		return "html"
	default:
		return "markdown"
	}
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString("# Task Analysis Report\n\n")
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Model:** %s\n\n", r.Model)
	fmt.Fprintf(&sb, "**Tasks analyzed:** %d\n\n", r.TaskCount)

	sb.WriteString("## Analysis\n\n")
	sb.WriteString(r.Analysis)
	sb.WriteString("\n\n")

	sb.WriteString("## Tasks\n\n")
	for _, t := range r.Tasks {
		fmt.Fprintf(&sb, "- **%s** (%s)", t.Title, t.Status)
		if t.Priority != "" {
			fmt.Fprintf(&sb, " priority: %s", t.Priority)
		}
		if t.DueDate != "" {
			fmt.Fprintf(&sb, " due: %s", t.DueDate)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Metadata\n\n")
	fmt.Fprintf(&sb, "- Tools enabled: %t\n", r.Metadata.ToolsEnabled)
	fmt.Fprintf(&sb, "- Tool calls: %d\n", r.Metadata.ToolCallCount)
	fmt.Fprintf(&sb, "- Duration: %.2fs\n", r.Metadata.DurationSeconds)

	return sb.String()
}

// Text renders the report as plain text by stripping Markdown
// formatting from the Markdown rendering.
func (r *Report) Text() string {
	return stripMarkdown(r.Markdown())
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data), nil
}

// HTML renders the report as a standalone HTML document.
func (r *Report) HTML() (string, error) {
	var body strings.Builder
	if err := goldmark.Convert([]byte(r.Markdown()), &body); err != nil {
		return "", fmt.Errorf("render report HTML: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>Task Analysis Report</title>\n</head>\n<body>\n")
	sb.WriteString(body.String())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

// Render produces the report in the given format.
func (r *Report) Render(format Format) (string, error) {
	switch format {
	case FormatJSON:
		return r.JSON()
	case FormatText:
		return r.Text(), nil
	case FormatHTML:
		return r.HTML()
	default:
		return r.Markdown(), nil
	}
}

// Save writes the report to path in the format implied by its
// extension, creating parent directories as needed.
func (r *Report) Save(path string) error {
	content, err := r.Render(FormatFromPath(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBold    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalic  = regexp.MustCompile(`\*([^*]+)\*`)
	mdCode    = regexp.MustCompile("`([^`]+)`")
	mdLink    = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// stripMarkdown removes the Markdown formatting this package emits.
// Not a general Markdown parser.
func stripMarkdown(s string) string {
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdItalic.ReplaceAllString(s, "$1")
	s = mdCode.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	return s
}
