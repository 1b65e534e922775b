// Package main is the entry point for the ATLAS coordination daemon.
//
// Usage:
//
//	atlas start    — daemon mode (HTTP API + monitor scheduler)
//	atlas version  — print version
//	atlas status   — check daemon health
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-agent/atlas/internal/approval"
	"github.com/atlas-agent/atlas/internal/audit"
	"github.com/atlas-agent/atlas/internal/config"
	"github.com/atlas-agent/atlas/internal/coordinator"
	"github.com/atlas-agent/atlas/internal/decision"
	"github.com/atlas-agent/atlas/internal/escalation"
	"github.com/atlas-agent/atlas/internal/executor"
	"github.com/atlas-agent/atlas/internal/httpapi"
	"github.com/atlas-agent/atlas/internal/monitor"
	"github.com/atlas-agent/atlas/internal/notifier"
	"github.com/atlas-agent/atlas/internal/observability"
	"github.com/atlas-agent/atlas/internal/router"
	"github.com/atlas-agent/atlas/internal/selfcode"
	"github.com/atlas-agent/atlas/internal/task"
	"github.com/atlas-agent/atlas/internal/worker"
)

const (
	version = "0.1.0"
	appName = "atlas"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runDaemon()
	case "version":
		fmt.Printf("%s v%s\n", appName, version)
	case "status":
		runStatus()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s v%s — agent orchestration and decision pipeline

Usage:
  %s <command>

Commands:
  start    Start the daemon (HTTP API + monitor scheduler)
  status   Check daemon health (requires running daemon)
  version  Print version

Environment variables (override config.json):
  ATLAS_DATA_DIR                  Data directory (default: ~/.atlas)
  ATLAS_API_ADDR                  API listen address (default: 127.0.0.1:8090)
  ATLAS_CONFIDENCE_THRESHOLD      Decision gate base threshold (default: 0.6)
  ATLAS_RISK_TOLERANCE            Decision gate risk tolerance (default: 0.5)
  ATLAS_MAX_AUDIT_HISTORY         Audit trail bound (default: 1000)
  ATLAS_APPROVAL_DEFAULT_TIMEOUT  Approval timeout, e.g. "5m" (default: 5m)
  ATLAS_EXECUTOR_SANDBOX          Safe executor sandbox mode (default: true)
  SLACK_BOT_TOKEN, SLACK_CHANNEL  Slack notifier; unset falls back to in-memory
  ANTHROPIC_API_KEY, ANTHROPIC_MODEL  Self-coding pipeline generator

`, appName, version, appName)
}

// bootstrap wires every component of the coordination daemon and
// returns the ready-to-serve coordinator and approval workflow. logger is
// the single structured logger every wired component reports through;
// metrics is the single Prometheus collector set every wired component
// reports through.
func bootstrap(cfg config.Config, logger *observability.Logger) (*coordinator.Coordinator, *approval.Workflow, *monitor.Scheduler, func() error, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("bootstrap: create data dir: %w", err)
	}

	metrics := observability.NewRegistered(prometheus.DefaultRegisterer)

	registry := worker.NewRegistry()
	registry.SetLogger(logger)

	r := router.New()

	gate := decision.GateConfig{Threshold: cfg.ConfidenceThreshold, RiskTolerance: cfg.RiskTolerance}
	matrix := decision.New(gate, nil)

	trail := audit.New(cfg.MaxAuditHistory)
	trail.SetMetrics(metrics)
	closeStore := func() error { return nil }
	if dbPath := filepath.Join(cfg.DataDir, "audit.db"); dbPath != "" {
		store, err := audit.NewSQLiteStore(dbPath)
		if err != nil {
			logger.Warn("sqlite audit store unavailable, continuing in-memory only", "error", err.Error())
		} else {
			trail.SetStore(store)
			closeStore = store.Close
		}
	}

	var n notifier.Notifier
	if cfg.SlackBotToken != "" {
		n = notifier.NewRetrying(notifier.NewSlack(notifier.SlackConfig{
			BotToken: cfg.SlackBotToken,
			Channel:  cfg.SlackChannel,
		}))
		logger.Info("notifier wired", "kind", "slack", "channel", cfg.SlackChannel)
	} else {
		n = notifier.NewMemory()
		logger.Info("notifier wired", "kind", "in-memory", "hint", "set SLACK_BOT_TOKEN for Slack")
	}

	coord := coordinator.New(registry, r, matrix, trail, n)
	coord.ApprovalTimeoutSeconds = int(cfg.ApprovalDefaultTimeout.Seconds())
	coord.SetMetrics(metrics)

	escEngine := escalation.New(r, registry, coord.RouteAction)
	escEngine.SetMetrics(metrics)
	coord.Escalation = escEngine

	approvalWF := approval.New(n, coord.RouteAction)
	approvalWF.SetMetrics(metrics)
	coord.Approval = approvalWF

	execCfg := executor.DefaultConfig()
	execCfg.Sandbox = cfg.ExecutorSandbox
	exec := executor.New(execCfg)

	var gen selfcode.CodeGenerator
	if cfg.AnthropicAPIKey != "" {
		gen = selfcode.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		logger.Info("selfcode generator wired", "kind", "anthropic", "model", cfg.AnthropicModel)
	} else {
		gen = selfcode.TemplateGenerator{}
		logger.Info("selfcode generator wired", "kind", "template", "hint", "set ANTHROPIC_API_KEY for live generation")
	}
	pipeline := selfcode.New(gen, exec)
	pipeline.SetMetrics(metrics)
	registry.Register(selfcode.NewWorker(pipeline))

	sched := monitor.New(dispatchForMonitor(coord))
	sched.SetLogger(logger)
	sched.SetMetrics(metrics)
	for name, interval := range cfg.MonitorIntervals {
		if err := sched.Register(monitor.Spec{Name: name, Worker: name, Description: "scheduled check: " + name, CheckInterval: interval}); err != nil {
			logger.Warn("monitor register failed", "spec", name, "error", err.Error())
		}
	}

	logger.Info("all subsystems ready")
	return coord, approvalWF, sched, closeStore, nil
}

func runDaemon() {
	cfg, err := config.Load(filepath.Join(configDataDir(), "config.json"))
	if err != nil {
		log.Fatalf("[daemon] config: %v", err)
	}

	logger := observability.NewLogger("atlas", nil)
	logger.Info("starting", "version", version, "addr", cfg.APIAddr)

	coord, approvalWF, sched, closeStore, err := bootstrap(cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err.Error())
		os.Exit(1)
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sched.Start(ctx)

	server := httpapi.New(cfg.APIAddr, coord, approvalWF)
	go func() {
		logger.Info("api listening", "addr", cfg.APIAddr)
		if err := server.Start(ctx); err != nil {
			logger.Error("api server stopped", "error", err.Error())
		}
	}()

	<-sigCh
	logger.Info("shutting down")
	cancel()
	sched.Wait()
	_ = server.Stop()
	logger.Info("shutdown complete")
}

func runStatus() {
	cfg, err := config.Load(filepath.Join(configDataDir(), "config.json"))
	if err != nil {
		log.Fatalf("status: %v", err)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", cfg.APIAddr))
	if err != nil {
		fmt.Printf("daemon is NOT running at %s: %v\n", cfg.APIAddr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		fmt.Printf("daemon is running at %s\n", cfg.APIAddr)
	} else {
		fmt.Printf("daemon returned status %d\n", resp.StatusCode)
		os.Exit(1)
	}
}

func configDataDir() string {
	if v := os.Getenv("ATLAS_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".atlas")
}

// dispatchForMonitor adapts Coordinator.Handle to monitor.DispatchFunc.
func dispatchForMonitor(c *coordinator.Coordinator) monitor.DispatchFunc {
	return func(ctx context.Context, t task.Task) (task.Result, error) {
		return c.Handle(ctx, t)
	}
}
