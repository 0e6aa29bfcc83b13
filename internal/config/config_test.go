package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasklens.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mcp:
  command: /usr/local/bin/mcp_todo_task
  args: ["--db", "tasks.db"]
  request_timeout_seconds: 10
deepseek:
  api_key: sk-test
  model: deepseek-chat
report:
  history_db: /var/lib/tasklens/history.db
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MCP.Command != "/usr/local/bin/mcp_todo_task" {
		t.Errorf("command = %q", cfg.MCP.Command)
	}
	if len(cfg.MCP.Args) != 2 || cfg.MCP.Args[1] != "tasks.db" {
		t.Errorf("args = %v", cfg.MCP.Args)
	}
	if cfg.MCP.RequestTimeoutSec != 10 {
		t.Errorf("timeout = %d, want 10", cfg.MCP.RequestTimeoutSec)
	}
	// Unset fields keep their defaults.
	if cfg.MCP.MaxRetries != 3 {
		t.Errorf("max retries = %d, want default 3", cfg.MCP.MaxRetries)
	}
	if cfg.DeepSeek.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.DeepSeek.APIKey)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_TASK_DB", "/data/tasks.db")
	path := writeConfig(t, `
mcp:
  args: ["--db", "${TEST_TASK_DB}"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MCP.Args[1] != "/data/tasks.db" {
		t.Errorf("args = %v, want env expansion", cfg.MCP.Args)
	}
}

func TestLoadAPIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")
	path := writeConfig(t, "mcp:\n  command: ./server\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-from-env" {
		t.Errorf("api key = %q, want env fallback", cfg.DeepSeek.APIKey)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MCP.Command != "./mcp_todo_task" {
		t.Errorf("default command = %q", cfg.MCP.Command)
	}
	if cfg.MCP.RequestTimeoutSec != 30 || cfg.MCP.MaxRetries != 3 || cfg.MCP.RetryDelayMS != 1000 {
		t.Errorf("defaults = %+v", cfg.MCP)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"empty command", func(c *Config) { c.MCP.Command = "" }, true},
		{"zero timeout", func(c *Config) { c.MCP.RequestTimeoutSec = 0 }, true},
		{"zero retries", func(c *Config) { c.MCP.MaxRetries = 0 }, true},
		{"email without smtp host", func(c *Config) { c.Email.To = []string{"a@b.c"} }, true},
		{"email with smtp host", func(c *Config) {
			c.Email.To = []string{"a@b.c"}
			c.Email.SMTP.Host = "mail.example.com"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path should error")
	}
}
