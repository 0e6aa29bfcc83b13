package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Task is one todo item as reported by the task server. Optional
// fields are empty strings when the server omits them.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TaskListResponse is the paginated envelope some servers wrap task
// lists in.
type TaskListResponse struct {
	Tasks    []Task `json:"tasks"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// finishedStatuses and unfinishedStatuses partition the known status
// vocabulary. Statuses outside both sets are classified by whether a
// completion timestamp is present.
var (
	finishedStatuses = map[string]bool{
		"completed": true,
		"done":      true,
		"finished":  true,
		"closed":    true,
		"resolved":  true,
	}
	unfinishedStatuses = map[string]bool{
		"pending":     true,
		"in_progress": true,
		"todo":        true,
		"incomplete":  true,
		"new":         true,
		"open":        true,
		"active":      true,
	}
)

// Unfinished reports whether the task still needs work. Status values
// are matched case-insensitively against the known vocabulary; an
// unknown status falls back to the completion timestamp.
func (t Task) Unfinished() bool {
	status := strings.ToLower(t.Status)
	if unfinishedStatuses[status] {
		return true
	}
	if finishedStatuses[status] {
		return false
	}
	return t.CompletedAt == ""
}

// parseTaskList decodes a task payload that may be either a paginated
// envelope or a bare array. The envelope shape is tried first; a
// document that decodes as an envelope but carries no tasks field is
// retried as a bare array.
func parseTaskList(text string) ([]Task, error) {
	var envelope TaskListResponse
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Tasks != nil {
		return envelope.Tasks, nil
	}

	var tasks []Task
	if err := json.Unmarshal([]byte(text), &tasks); err == nil {
		return tasks, nil
	}

	return nil, fmt.Errorf("task payload is neither a paginated envelope nor a task array (payload: %.200s)", text)
}

// AllTasks fetches every task from the server via the list_tasks tool.
func (c *Client) AllTasks(ctx context.Context) ([]Task, error) {
	result, err := c.CallTool(ctx, "list_tasks", nil)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	text := extractText(result.Content)
	if text == "" {
		return nil, fmt.Errorf("list_tasks returned no text content")
	}

	tasks, err := parseTaskList(text)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// TasksByStatus fetches all tasks and keeps those whose status equals
// the given value, compared case-insensitively.
func (c *Client) TasksByStatus(ctx context.Context, status string) ([]Task, error) {
	all, err := c.AllTasks(ctx)
	if err != nil {
		return nil, err
	}

	var matched []Task
	for _, t := range all {
		if strings.EqualFold(t.Status, status) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// UnfinishedTasks fetches all tasks and keeps those still needing
// work.
func (c *Client) UnfinishedTasks(ctx context.Context) ([]Task, error) {
	all, err := c.AllTasks(ctx)
	if err != nil {
		return nil, err
	}

	var unfinished []Task
	for _, t := range all {
		if t.Unfinished() {
			unfinished = append(unfinished, t)
		}
	}
	return unfinished, nil
}
