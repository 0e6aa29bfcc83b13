// Package config handles TaskLens configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./tasklens.yaml, ~/.config/tasklens/tasklens.yaml,
// /etc/tasklens/tasklens.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"tasklens.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tasklens", "tasklens.yaml"))
	}

	paths = append(paths, "/etc/tasklens/tasklens.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches DefaultSearchPaths and returns the first
// that exists. Returns the path found, or an error if nothing was
// found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all TaskLens configuration.
type Config struct {
	MCP      MCPConfig      `yaml:"mcp"`
	DeepSeek DeepSeekConfig `yaml:"deepseek"`
	Report   ReportConfig   `yaml:"report"`
	Email    EmailConfig    `yaml:"email"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	LogLevel string         `yaml:"log_level"`
}

// MCPConfig describes how to launch and talk to the task server.
type MCPConfig struct {
	Command           string   `yaml:"command"`
	Args              []string `yaml:"args"`
	Env               []string `yaml:"env"`
	RequestTimeoutSec int      `yaml:"request_timeout_seconds"`
	MaxRetries        int      `yaml:"max_retries"`
	RetryDelayMS      int      `yaml:"retry_delay_ms"`
}

// DeepSeekConfig holds chat API settings. APIKey falls back to the
// DEEPSEEK_API_KEY environment variable when empty.
type DeepSeekConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ReportConfig controls report archiving.
type ReportConfig struct {
	// HistoryDB is the SQLite file recording past analysis runs.
	// Empty disables archiving.
	HistoryDB string `yaml:"history_db"`
}

// EmailConfig controls report delivery by mail.
type EmailConfig struct {
	From    string     `yaml:"from"`
	To      []string   `yaml:"to"`
	Subject string     `yaml:"subject"`
	SMTP    SMTPConfig `yaml:"smtp"`
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"starttls"`
}

// MQTTConfig holds broker settings for run notifications.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.DeepSeek.APIKey == "" {
		cfg.DeepSeek.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		MCP: MCPConfig{
			Command:           "./mcp_todo_task",
			RequestTimeoutSec: 30,
			MaxRetries:        3,
			RetryDelayMS:      1000,
		},
		DeepSeek: DeepSeekConfig{
			APIKey: os.Getenv("DEEPSEEK_API_KEY"),
		},
		MQTT: MQTTConfig{
			Topic: "tasklens/analysis",
		},
	}
}

// Validate checks settings that would otherwise fail deep inside a
// subsystem with a confusing error.
func (c *Config) Validate() error {
	if c.MCP.Command == "" {
		return fmt.Errorf("mcp.command must not be empty")
	}
	if c.MCP.RequestTimeoutSec <= 0 {
		return fmt.Errorf("mcp.request_timeout_seconds must be positive")
	}
	if c.MCP.MaxRetries < 1 {
		return fmt.Errorf("mcp.max_retries must be at least 1")
	}
	if len(c.Email.To) > 0 && c.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host required when email recipients are set")
	}
	return nil
}
