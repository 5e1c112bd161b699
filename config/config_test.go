package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "sched.json")

	if err := os.WriteFile(configFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ScreenOffAdjustmentDelayMs != 30_000 {
		t.Errorf("expected default screen_off_adjustment_delay_ms 30000, got %d", cfg.ScreenOffAdjustmentDelayMs)
	}
	if cfg.PkgConcurrencyLimitEJ != 3 {
		t.Errorf("expected default pkg_concurrency_limit_ej 3, got %d", cfg.PkgConcurrencyLimitEJ)
	}
	if cfg.PkgConcurrencyLimitRegular != 8 {
		t.Errorf("expected default pkg_concurrency_limit_regular 8, got %d", cfg.PkgConcurrencyLimitRegular)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("non_existent_file.json")
	if err == nil {
		t.Error("expected error when loading non-existent config file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid_config.json")

	if err := os.WriteFile(configFile, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(configFile)
	if err == nil {
		t.Error("expected error when loading invalid JSON config file")
	}
}

func TestValidateRejectsLowRuntimeGuarantee(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "sched.json")

	data, err := json.Marshal(map[string]any{
		"runtime_min_guarantee_ms": 1000,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("expected validation error for runtime_min_guarantee_ms below 10 minutes")
	}
}

func TestValidateRejectsOutOfRangePkgLimit(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "sched.json")

	data, err := json.Marshal(map[string]any{
		"pkg_concurrency_limit_ej": 99,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("expected validation error for pkg_concurrency_limit_ej above 16")
	}
}
