package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tasklens/tasklens/internal/mcp"
)

func sampleReport() *Report {
	return &Report{
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Model:     "deepseek-chat",
		TaskCount: 2,
		Tasks: []mcp.Task{
			{ID: "a", Title: "Buy milk", Status: "pending", Priority: "high"},
			{ID: "b", Title: "Walk dog", Status: "todo", DueDate: "2026-09-01T00:00:00Z"},
		},
		Analysis: "Focus on **Buy milk** first.",
		Metadata: Metadata{ToolsEnabled: true, ToolCallCount: 3, DurationSeconds: 4.2},
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"report.json", FormatJSON},
		{"report.txt", FormatText},
		{"report.TEXT", FormatText},
		{"report.md", FormatMarkdown},
		{"report.markdown", FormatMarkdown},
		{"report.html", FormatHTML},
		{"report.htm", FormatHTML},
		{"report.pdf", FormatMarkdown},
		{"report", FormatMarkdown},
	}

	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMarkdownRendering(t *testing.T) {
	md := sampleReport().Markdown()

	for _, want := range []string{
		"# Task Analysis Report",
		"**Model:** deepseek-chat",
		"**Tasks analyzed:** 2",
		"Focus on **Buy milk** first.",
		"- Tool calls: 3",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestTextRenderingStripsFormatting(t *testing.T) {
	text := sampleReport().Text()

	if strings.Contains(text, "**") || strings.Contains(text, "# ") {
		t.Errorf("text output still carries markdown:\n%s", text)
	}
	if !strings.Contains(text, "Focus on Buy milk first.") {
		t.Errorf("text output lost content:\n%s", text)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	out, err := sampleReport().JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Metadata.ToolCallCount != 3 {
		t.Errorf("tool call count = %d, want 3", decoded.Metadata.ToolCallCount)
	}

	// Wire field names follow the report schema, not Go names.
	if !strings.Contains(out, `"analysis_duration_seconds"`) {
		t.Error("JSON missing analysis_duration_seconds field")
	}
	if !strings.Contains(out, `"tools_enabled"`) {
		t.Error("JSON missing tools_enabled field")
	}
}

func TestHTMLRendering(t *testing.T) {
	html, err := sampleReport().HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("HTML output missing document envelope")
	}
	if !strings.Contains(html, "<strong>Buy milk</strong>") {
		t.Errorf("markdown emphasis not rendered:\n%s", html)
	}
}

func TestSaveCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "reports", "run.json")

	if err := sampleReport().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved report: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved report is not JSON: %v", err)
	}
}
