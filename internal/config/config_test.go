package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want 0.6", cfg.ConfidenceThreshold)
	}
	if cfg.RiskTolerance != 0.5 {
		t.Errorf("RiskTolerance = %v, want 0.5", cfg.RiskTolerance)
	}
	if cfg.MaxAuditHistory != 1000 {
		t.Errorf("MaxAuditHistory = %d, want 1000", cfg.MaxAuditHistory)
	}
	if cfg.ApprovalDefaultTimeout != 5*time.Minute {
		t.Errorf("ApprovalDefaultTimeout = %v, want 5m", cfg.ApprovalDefaultTimeout)
	}
	if !cfg.ExecutorSandbox {
		t.Error("ExecutorSandbox should default to true")
	}
	if cfg.APIAddr != "127.0.0.1:8090" {
		t.Errorf("APIAddr = %q", cfg.APIAddr)
	}
}

func TestLoad_AbsentFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.6", cfg.ConfidenceThreshold)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"confidence_threshold": 0.8, "approval_default_timeout": "10m", "executor_sandbox": false}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfidenceThreshold != 0.8 {
		t.Errorf("ConfidenceThreshold = %v, want 0.8", cfg.ConfidenceThreshold)
	}
	if cfg.ApprovalDefaultTimeout != 10*time.Minute {
		t.Errorf("ApprovalDefaultTimeout = %v, want 10m", cfg.ApprovalDefaultTimeout)
	}
	if cfg.ExecutorSandbox {
		t.Error("ExecutorSandbox should be overridden to false")
	}
	// Untouched fields retain their defaults.
	if cfg.RiskTolerance != 0.5 {
		t.Errorf("RiskTolerance = %v, want untouched default 0.5", cfg.RiskTolerance)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"confidence_threshold": 0.8}`), 0o644)

	t.Setenv("ATLAS_CONFIDENCE_THRESHOLD", "0.95")
	defer os.Unsetenv("ATLAS_CONFIDENCE_THRESHOLD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfidenceThreshold != 0.95 {
		t.Errorf("ConfidenceThreshold = %v, want env override 0.95", cfg.ConfidenceThreshold)
	}
}

func TestLoad_MonitorIntervalsParsed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"monitor_intervals": {"disk-check": "30s"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MonitorIntervals["disk-check"] != 30*time.Second {
		t.Errorf("MonitorIntervals[disk-check] = %v, want 30s", cfg.MonitorIntervals["disk-check"])
	}
}

func TestLoad_MalformedJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{not valid json`), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}
