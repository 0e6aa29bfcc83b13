// TaskLens analyzes todo tasks with an LLM.
//
// It launches an MCP task server as a subprocess, fetches tasks over
// stdio JSON-RPC, and asks the DeepSeek chat API for an analysis. The
// model can call back into the task server through function tools
// while it works. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	tasklens list                 Show all tasks in a table
//	tasklens status <status>      Show tasks matching a status
//	tasklens stats                Show task statistics
//	tasklens tools                List the task server's tools
//	tasklens analyze              Run an LLM analysis of unfinished tasks
//	tasklens history              Show recent analysis runs
//	tasklens version              Print version and build information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tasklens/tasklens/internal/agent"
	"github.com/tasklens/tasklens/internal/buildinfo"
	"github.com/tasklens/tasklens/internal/config"
	"github.com/tasklens/tasklens/internal/deepseek"
	"github.com/tasklens/tasklens/internal/email"
	"github.com/tasklens/tasklens/internal/mcp"
	"github.com/tasklens/tasklens/internal/notify"
	"github.com/tasklens/tasklens/internal/report"
	"github.com/tasklens/tasklens/internal/taskview"
	"github.com/tasklens/tasklens/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the tasklens command. All OS-level
// dependencies are injected as parameters so tests can drive the full
// command surface. Arguments are parsed by hand: the flag package
// relies on package-level globals, which makes it impossible to call
// run() concurrently from tests, and the argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outPath string
	var sendEmail bool
	var verbose bool
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-out" && i+1 < len(args):
			outPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-out="):
			outPath = strings.TrimPrefix(args[i], "-out=")
		case args[i] == "-email":
			sendEmail = true
		case args[i] == "-v" || args[i] == "-verbose":
			verbose = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if command == "version" {
		return runVersion(stdout)
	}
	if command == "" {
		return printUsage(stdout)
	}

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, err = config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(stderr, level)

	switch command {
	case "list":
		return runList(ctx, stdout, cfg, logger)
	case "status":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: tasklens status <status>")
		}
		return runStatus(ctx, stdout, cfg, logger, cmdArgs[0])
	case "stats":
		return runStats(ctx, stdout, cfg, logger)
	case "tools":
		return runTools(ctx, stdout, cfg, logger)
	case "analyze":
		return runAnalyze(ctx, stdout, cfg, logger, outPath, sendEmail)
	case "history":
		return runHistory(ctx, stdout, cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata.
func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	info := buildinfo.Info()
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "TaskLens - LLM-powered todo task analyzer")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tasklens [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list              Show all tasks in a table")
	fmt.Fprintln(w, "  status <status>   Show tasks matching a status")
	fmt.Fprintln(w, "  stats             Show task statistics")
	fmt.Fprintln(w, "  tools             List the task server's tools")
	fmt.Fprintln(w, "  analyze           Run an LLM analysis of unfinished tasks")
	fmt.Fprintln(w, "  history           Show recent analysis runs")
	fmt.Fprintln(w, "  version           Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -out <path>       Write the analysis report to a file")
	fmt.Fprintln(w, "                    (format from extension: .md .txt .json .html)")
	fmt.Fprintln(w, "  -email            Email the analysis report to configured recipients")
	fmt.Fprintln(w, "  -v                Verbose (debug) logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./tasklens.yaml, ~/.config/tasklens/tasklens.yaml, /etc/tasklens/tasklens.yaml")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// connectMCP builds an MCP client for the configured task server and
// verifies it is reachable by listing its tools, retrying on failure.
// Each retry starts a fresh subprocess since a failed handshake leaves
// the client unusable.
func connectMCP(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mcp.Client, []mcp.ToolDescriptor, error) {
	delay := time.Duration(cfg.MCP.RetryDelayMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= cfg.MCP.MaxRetries; attempt++ {
		transport := mcp.NewStdioTransport(mcp.StdioConfig{
			Command: cfg.MCP.Command,
			Args:    cfg.MCP.Args,
			Env:     cfg.MCP.Env,
			Logger:  logger,
		})
		client := mcp.NewClient(transport, logger)

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.MCP.RequestTimeoutSec)*time.Second)
		descriptors, err := client.ListTools(reqCtx)
		cancel()
		if err == nil {
			return client, descriptors, nil
		}

		client.Close()
		lastErr = err
		logger.Warn("task server connection failed",
			"attempt", attempt,
			"max_retries", cfg.MCP.MaxRetries,
			"error", err,
		)

		if attempt < cfg.MCP.MaxRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
	}

	return nil, nil, fmt.Errorf("connect to task server after %d attempts: %w", cfg.MCP.MaxRetries, lastErr)
}

func runList(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger) error {
	client, _, err := connectMCP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.AllTasks(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(stdout, taskview.FormatTasks(fmt.Sprintf("📋 All Tasks (%d)", len(tasks)), tasks))
	return nil
}

func runStatus(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger, status string) error {
	client, _, err := connectMCP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.TasksByStatus(ctx, status)
	if err != nil {
		return err
	}

	fmt.Fprint(stdout, taskview.FormatTasks(fmt.Sprintf("📋 Tasks with status %q (%d)", status, len(tasks)), tasks))
	return nil
}

func runStats(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger) error {
	client, _, err := connectMCP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.AllTasks(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "📊 Task Overview")
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, taskview.SummaryStatistics(tasks))
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, taskview.PriorityBreakdown(tasks))
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, taskview.OverdueTasks(tasks, time.Now()))
	return nil
}

func runTools(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger) error {
	client, descriptors, err := connectMCP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	name, version := client.ServerInfo()
	fmt.Fprintf(stdout, "🤖 Server: %s %s\n\n", name, version)
	fmt.Fprintf(stdout, "Available tools (%d):\n", len(descriptors))
	for _, d := range descriptors {
		fmt.Fprintf(stdout, "  %-20s %s\n", d.Name, d.Description)
	}
	return nil
}

func runAnalyze(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger, outPath string, sendEmail bool) error {
	if cfg.DeepSeek.APIKey == "" {
		return fmt.Errorf("no DeepSeek API key configured (set deepseek.api_key or DEEPSEEK_API_KEY)")
	}

	client, _, err := connectMCP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tasks, err := client.UnfinishedTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(stdout, "🎉 No unfinished tasks. Nothing to analyze.")
		return nil
	}

	fmt.Fprintf(stdout, "🤖 Analyzing %d unfinished tasks...\n", len(tasks))

	catalog, err := tools.BuildCatalog(ctx, client, logger)
	if err != nil {
		return err
	}

	model := cfg.DeepSeek.Model
	if model == "" {
		model = deepseek.DefaultModel
	}
	chat := deepseek.NewClient(cfg.DeepSeek.BaseURL, cfg.DeepSeek.APIKey, logger)
	loop := agent.NewLoop(chat, catalog, model, logger)

	start := time.Now()
	result, err := loop.Run(ctx, agent.AnalysisPrompt(tasks, true))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	rep := &report.Report{
		Timestamp: start,
		Model:     model,
		TaskCount: len(tasks),
		Tasks:     tasks,
		Analysis:  result.Content,
		Metadata: report.Metadata{
			ToolsEnabled:    true,
			ToolCallCount:   result.ToolCalls,
			DurationSeconds: duration.Seconds(),
		},
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "🎯 Analysis")
	fmt.Fprintln(stdout, strings.Repeat("=", 80))
	fmt.Fprintln(stdout, result.Content)
	fmt.Fprintln(stdout, strings.Repeat("=", 80))
	fmt.Fprintf(stdout, "⚡ %d tool calls in %.1fs\n", result.ToolCalls, duration.Seconds())

	format := report.FormatFromPath(outPath)
	if outPath != "" {
		if err := rep.Save(outPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✅ Report written to %s\n", outPath)
	}

	if cfg.Report.HistoryDB != "" {
		if err := archiveRun(ctx, cfg.Report.HistoryDB, rep, format, outPath); err != nil {
			logger.Warn("report archive failed", "error", err)
		}
	}

	if sendEmail {
		if err := emailReport(ctx, cfg, rep); err != nil {
			logger.Warn("report email failed", "error", err)
		} else {
			fmt.Fprintf(stdout, "✅ Report emailed to %s\n", strings.Join(cfg.Email.To, ", "))
		}
	}

	if cfg.MQTT.Broker != "" {
		sum := notify.Summary{
			Timestamp:       start,
			Model:           model,
			TaskCount:       len(tasks),
			UnfinishedCount: len(tasks),
			ToolCalls:       result.ToolCalls,
			DurationSeconds: duration.Seconds(),
			OutputPath:      outPath,
		}
		if err := notify.PublishAnalysis(ctx, notify.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, sum, logger); err != nil {
			logger.Warn("mqtt notify failed", "error", err)
		}
	}

	return nil
}

func archiveRun(ctx context.Context, dbPath string, rep *report.Report, format report.Format, outPath string) error {
	store, err := report.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Archive(ctx, rep, format, outPath)
	return err
}

func emailReport(ctx context.Context, cfg *config.Config, rep *report.Report) error {
	if len(cfg.Email.To) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	subject := cfg.Email.Subject
	if subject == "" {
		subject = fmt.Sprintf("Task analysis: %d tasks reviewed", rep.TaskCount)
	}

	msg, err := email.ComposeReportMessage(cfg.Email.From, cfg.Email.To, subject, rep.Markdown())
	if err != nil {
		return err
	}

	return email.SendMail(ctx, email.SMTPConfig{
		Host:     cfg.Email.SMTP.Host,
		Port:     cfg.Email.SMTP.Port,
		Username: cfg.Email.SMTP.Username,
		Password: cfg.Email.SMTP.Password,
		StartTLS: cfg.Email.SMTP.StartTLS,
	}, cfg.Email.From, cfg.Email.To, msg)
}

func runHistory(ctx context.Context, stdout io.Writer, cfg *config.Config) error {
	if cfg.Report.HistoryDB == "" {
		return fmt.Errorf("no history database configured (set report.history_db)")
	}

	store, err := report.NewStore(cfg.Report.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No analysis runs recorded yet.")
		return nil
	}

	for _, e := range entries {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(stdout, "%s  %s  model=%s tasks=%d tool_calls=%d %.1fs\n",
			e.Timestamp.Format("2006-01-02 15:04"),
			id,
			e.Model,
			e.TaskCount,
			e.ToolCallCount,
			e.DurationSeconds,
		)
	}
	return nil
}
