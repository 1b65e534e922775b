// Package config loads ATLAS runtime configuration in three layers:
// built-in defaults, an optional JSON file, then environment variables,
// each overriding the last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable knob the daemon exposes.
type Config struct {
	// ConfidenceThreshold is the decision gate's base threshold.
	ConfidenceThreshold float64
	// RiskTolerance shifts the gate threshold per risk tier.
	RiskTolerance float64
	// MaxAuditHistory bounds the in-memory audit trail.
	MaxAuditHistory int
	// ApprovalDefaultTimeout is copied into the coordinator's
	// ApprovalTimeoutSeconds at startup.
	ApprovalDefaultTimeout time.Duration
	// MonitorIntervals maps a monitor spec name to its check interval.
	MonitorIntervals map[string]time.Duration
	// ExecutorSandbox selects the safe executor's deterministic sandbox mode.
	ExecutorSandbox bool

	// DataDir is where the SQLite audit snapshot and any persisted state live.
	DataDir string
	// APIAddr is the httpapi listen address.
	APIAddr string
	// SlackBotToken / SlackChannel configure the Slack notifier; empty
	// SlackBotToken selects the in-memory notifier instead.
	SlackBotToken string
	SlackChannel  string
	// AnthropicAPIKey, if set, selects the AnthropicGenerator for self-coding;
	// otherwise the deterministic TemplateGenerator is used.
	AnthropicAPIKey string
	AnthropicModel  string
}

// fileConfig is the JSON shape persisted to <DataDir>/config.json.
type fileConfig struct {
	ConfidenceThreshold    *float64          `json:"confidence_threshold,omitempty"`
	RiskTolerance          *float64          `json:"risk_tolerance,omitempty"`
	MaxAuditHistory        *int              `json:"max_audit_history,omitempty"`
	ApprovalDefaultTimeout string            `json:"approval_default_timeout,omitempty"`
	MonitorIntervals       map[string]string `json:"monitor_intervals,omitempty"`
	ExecutorSandbox        *bool             `json:"executor_sandbox,omitempty"`
	APIAddr                string            `json:"api_addr,omitempty"`
	SlackBotToken          string            `json:"slack_bot_token,omitempty"`
	SlackChannel           string            `json:"slack_channel,omitempty"`
	AnthropicAPIKey        string            `json:"anthropic_api_key,omitempty"`
	AnthropicModel         string            `json:"anthropic_model,omitempty"`
}

// Default returns the conservative built-in defaults for the decision gate
// and executor.
func Default() Config {
	home, err := os.UserHomeDir()
	dataDir := "."
	if err == nil {
		dataDir = home + "/.atlas"
	}
	return Config{
		ConfidenceThreshold:    0.6,
		RiskTolerance:          0.5,
		MaxAuditHistory:        1000,
		ApprovalDefaultTimeout: 5 * time.Minute,
		MonitorIntervals:       map[string]time.Duration{},
		ExecutorSandbox:        true,
		DataDir:                dataDir,
		APIAddr:                "127.0.0.1:8090",
	}
}

// Load builds a Config by layering defaults, an optional JSON file at
// path (ignored if absent), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if fc, err := loadFile(path); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		} else if fc != nil {
			applyFile(&cfg, fc)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *fc.ConfidenceThreshold
	}
	if fc.RiskTolerance != nil {
		cfg.RiskTolerance = *fc.RiskTolerance
	}
	if fc.MaxAuditHistory != nil {
		cfg.MaxAuditHistory = *fc.MaxAuditHistory
	}
	if fc.ApprovalDefaultTimeout != "" {
		if d, err := time.ParseDuration(fc.ApprovalDefaultTimeout); err == nil {
			cfg.ApprovalDefaultTimeout = d
		}
	}
	for name, raw := range fc.MonitorIntervals {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.MonitorIntervals[name] = d
		}
	}
	if fc.ExecutorSandbox != nil {
		cfg.ExecutorSandbox = *fc.ExecutorSandbox
	}
	if fc.APIAddr != "" {
		cfg.APIAddr = fc.APIAddr
	}
	if fc.SlackBotToken != "" {
		cfg.SlackBotToken = fc.SlackBotToken
	}
	if fc.SlackChannel != "" {
		cfg.SlackChannel = fc.SlackChannel
	}
	if fc.AnthropicAPIKey != "" {
		cfg.AnthropicAPIKey = fc.AnthropicAPIKey
	}
	if fc.AnthropicModel != "" {
		cfg.AnthropicModel = fc.AnthropicModel
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ATLAS_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("ATLAS_RISK_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RiskTolerance = f
		}
	}
	if v := os.Getenv("ATLAS_MAX_AUDIT_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAuditHistory = n
		}
	}
	if v := os.Getenv("ATLAS_APPROVAL_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ApprovalDefaultTimeout = d
		}
	}
	if v := os.Getenv("ATLAS_EXECUTOR_SANDBOX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExecutorSandbox = b
		}
	}
	if v := os.Getenv("ATLAS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ATLAS_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.SlackBotToken = v
	}
	if v := os.Getenv("SLACK_CHANNEL"); v != "" {
		cfg.SlackChannel = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.AnthropicModel = v
	}
}
