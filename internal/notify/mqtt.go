// Package notify publishes analysis run summaries to an MQTT broker
// so dashboards and automations can react to fresh reports.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Config holds broker connection settings.
type Config struct {
	// Broker is the broker URL (mqtt://, mqtts://, or ssl:// scheme).
	Broker string

	// Topic is where run summaries are published.
	Topic string

	Username string
	Password string
}

// Summary is the payload published after an analysis run.
type Summary struct {
	Timestamp       time.Time `json:"timestamp"`
	Model           string    `json:"model"`
	TaskCount       int       `json:"task_count"`
	UnfinishedCount int       `json:"unfinished_count"`
	ToolCalls       int       `json:"tool_calls"`
	DurationSeconds float64   `json:"duration_seconds"`
	OutputPath      string    `json:"output_path,omitempty"`
}

// PublishAnalysis connects to the broker, publishes one summary, and
// disconnects. Callers treat failures as non-fatal: a down broker
// must not lose an otherwise successful analysis run.
func PublishAnalysis(ctx context.Context, cfg Config, sum Summary, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		OnConnectError: func(err error) {
			logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "tasklens-notify",
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer cm.Disconnect(context.Background())

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		return fmt.Errorf("mqtt broker unreachable: %w", err)
	}

	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   cfg.Topic,
		QoS:     1,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}

	logger.Info("analysis summary published", "topic", cfg.Topic)
	return nil
}
