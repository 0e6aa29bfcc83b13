package email

import (
	"strings"
	"testing"
)

func TestComposeReportMessage(t *testing.T) {
	msg, err := ComposeReportMessage(
		"TaskLens <reports@example.com>",
		[]string{"Alex <alex@example.com>"},
		"Task analysis: 3 tasks reviewed",
		"# Report\n\nFocus on **Buy milk** first.",
	)
	if err != nil {
		t.Fatalf("ComposeReportMessage: %v", err)
	}

	raw := string(msg)
	for _, want := range []string{
		"From: ",
		"reports@example.com",
		"To: ",
		"alex@example.com",
		"Subject: ",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestComposeRejectsBadAddress(t *testing.T) {
	_, err := ComposeReportMessage("not an address", []string{"a@b.c"}, "s", "body")
	if err == nil {
		t.Error("expected error for malformed from address")
	}
}

func TestMarkdownToPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "**hello**", "hello"},
		{"heading", "# Title\nbody", "Title\nbody"},
		{"link", "[docs](https://example.com)", "docs (https://example.com)"},
		{"inline code", "run `make`", "run make"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markdownToPlain(tt.in); got != tt.want {
				t.Errorf("markdownToPlain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alex <alex@example.com>", "alex@example.com"},
		{"alex@example.com", "alex@example.com"},
	}
	for _, tt := range tests {
		if got := extractAddress(tt.in); got != tt.want {
			t.Errorf("extractAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
