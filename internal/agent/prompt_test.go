package agent

import (
	"strings"
	"testing"

	"github.com/tasklens/tasklens/internal/mcp"
)

func TestFormatTasksForAnalysis(t *testing.T) {
	tasks := []mcp.Task{
		{Title: "Buy milk", Status: "pending", Priority: "high", Tags: []string{"errand", "home"}},
		{Title: "Walk dog", Status: "todo", Description: "Before dark"},
	}

	got := FormatTasksForAnalysis(tasks)

	for _, want := range []string{
		"Task 1: Buy milk",
		"  Priority: high",
		"  Tags: errand, home",
		"Task 2: Walk dog",
		"  Description: Before dark",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	// Optional fields are omitted, not rendered empty.
	if strings.Contains(got, "Due:") {
		t.Error("unset due date should not be rendered")
	}
}

func TestAnalysisPrompt(t *testing.T) {
	tasks := []mcp.Task{{Title: "one", Status: "open"}, {Title: "two", Status: "open"}}

	got := AnalysisPrompt(tasks, true)
	if !strings.Contains(got, "Please analyze these 2 tasks") {
		t.Errorf("prompt missing task count: %s", got)
	}
	if !strings.Contains(got, "available tools") {
		t.Error("tools-enabled prompt should mention tools")
	}

	plain := AnalysisPrompt(tasks, false)
	if strings.Contains(plain, "available tools") {
		t.Error("tools-disabled prompt should not mention tools")
	}
}
