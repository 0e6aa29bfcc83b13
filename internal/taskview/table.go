// Package taskview renders tasks for the console: tables, summary
// statistics, and overdue listings.
package taskview

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tasklens/tasklens/internal/mcp"
)

const (
	idWidth    = 8
	titleWidth = 40
	tagsWidth  = 30
)

// truncate shortens s to at most width runes, marking the cut with an
// ellipsis.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// orNA substitutes "N/A" for empty values.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// shortDate reduces an RFC 3339 timestamp to its date part. Values
// that do not parse are passed through unchanged.
func shortDate(s string) string {
	if s == "" {
		return "N/A"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

// FormatTasks renders tasks as an aligned table under a banner title.
func FormatTasks(title string, tasks []mcp.Task) string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 80))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 80))
	sb.WriteString("\n")

	if len(tasks) == 0 {
		sb.WriteString("No tasks found.\n")
		return sb.String()
	}

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTitle\tStatus\tPriority\tDue Date\tCreated\tTags")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(t.ID, idWidth),
			truncate(t.Title, titleWidth),
			orNA(t.Status),
			orNA(t.Priority),
			shortDate(t.DueDate),
			shortDate(t.CreatedAt),
			truncate(strings.Join(t.Tags, ","), tagsWidth),
		)
	}
	w.Flush()

	fmt.Fprintf(&sb, "\nTotal: %d tasks\n", len(tasks))
	return sb.String()
}

// SummaryStatistics renders per-status counts and the completion rate.
func SummaryStatistics(tasks []mcp.Task) string {
	var sb strings.Builder

	sb.WriteString("Task Statistics\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")

	if len(tasks) == 0 {
		sb.WriteString("No tasks found.\n")
		return sb.String()
	}

	byStatus := map[string]int{}
	finished := 0
	for _, t := range tasks {
		byStatus[strings.ToLower(orNA(t.Status))]++
		if !t.Unfinished() {
			finished++
		}
	}

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, status := range sortedKeys(byStatus) {
		fmt.Fprintf(w, "%s\t%d\n", status, byStatus[status])
	}
	w.Flush()

	rate := float64(finished) / float64(len(tasks)) * 100
	fmt.Fprintf(&sb, "\nTotal: %d tasks, %d finished (%.1f%% complete)\n",
		len(tasks), finished, rate)
	return sb.String()
}

// PriorityBreakdown groups tasks into high, medium, low, and unset
// priority buckets.
func PriorityBreakdown(tasks []mcp.Task) string {
	var high, medium, low, unset int
	for _, t := range tasks {
		switch strings.ToLower(t.Priority) {
		case "high", "urgent", "critical":
			high++
		case "medium", "normal":
			medium++
		case "low":
			low++
		default:
			unset++
		}
	}

	var sb strings.Builder
	sb.WriteString("Priority Breakdown\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "🔴 High:   %d\n", high)
	fmt.Fprintf(&sb, "🟡 Medium: %d\n", medium)
	fmt.Fprintf(&sb, "🟢 Low:    %d\n", low)
	fmt.Fprintf(&sb, "⚪ Unset:  %d\n", unset)
	return sb.String()
}

// OverdueTasks lists unfinished tasks whose due date has passed.
func OverdueTasks(tasks []mcp.Task, now time.Time) string {
	var overdue []mcp.Task
	for _, t := range tasks {
		if !t.Unfinished() || t.DueDate == "" {
			continue
		}
		due, err := time.Parse(time.RFC3339, t.DueDate)
		if err != nil {
			continue
		}
		if due.Before(now) {
			overdue = append(overdue, t)
		}
	}

	if len(overdue) == 0 {
		return "No overdue tasks found.\n"
	}
	return FormatTasks(fmt.Sprintf("Overdue Tasks (%d)", len(overdue)), overdue)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
