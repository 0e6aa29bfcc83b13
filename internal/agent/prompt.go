package agent

import (
	"fmt"
	"strings"

	"github.com/tasklens/tasklens/internal/mcp"
)

// FormatTasksForAnalysis renders tasks as the numbered plain-text
// block embedded in the analysis prompt.
func FormatTasksForAnalysis(tasks []mcp.Task) string {
	var sb strings.Builder
	for i, t := range tasks {
		fmt.Fprintf(&sb, "Task %d: %s\n", i+1, t.Title)
		if t.Description != "" {
			fmt.Fprintf(&sb, "  Description: %s\n", t.Description)
		}
		fmt.Fprintf(&sb, "  Status: %s\n", t.Status)
		if t.Priority != "" {
			fmt.Fprintf(&sb, "  Priority: %s\n", t.Priority)
		}
		if t.DueDate != "" {
			fmt.Fprintf(&sb, "  Due: %s\n", t.DueDate)
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(&sb, "  Tags: %s\n", strings.Join(t.Tags, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// AnalysisPrompt builds the user prompt asking the model to analyze
// the given tasks. When tools are enabled the prompt invites the model
// to fetch additional data itself.
func AnalysisPrompt(tasks []mcp.Task, toolsEnabled bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Please analyze these %d tasks and provide insights:\n\n", len(tasks))
	sb.WriteString(FormatTasksForAnalysis(tasks))
	sb.WriteString("Provide a summary of the current workload, identify priorities, ")
	sb.WriteString("flag anything overdue or at risk, and suggest an order of attack.")

	if toolsEnabled {
		sb.WriteString(" You may use the available tools to fetch task details or ")
		sb.WriteString("statistics if you need more information.")
	}

	return sb.String()
}
