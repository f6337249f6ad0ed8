package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ROBOT_OUTPUT_DIR", "ROBOT_POLL_INTERVAL_MS", "ROBOT_WAIT_TIMEOUT_SEC", "IRIS_BASE_URL", "ROBOT_EN_PASSANT", "HUMAN_COLOR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputDir != "robot_output" || cfg.PollInterval != 200*time.Millisecond || cfg.WaitTimeout != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.EnPassant != "relocate" || cfg.HumanColor != "white" || cfg.RelayEnabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROBOT_OUTPUT_DIR", "/tmp/arm")
	t.Setenv("ROBOT_POLL_INTERVAL_MS", "50")
	t.Setenv("ROBOT_WAIT_TIMEOUT_SEC", "90")
	t.Setenv("ROBOT_USE_FSNOTIFY", "true")
	t.Setenv("ROBOT_EN_PASSANT", "IGNORE")
	t.Setenv("HUMAN_COLOR", "black")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputDir != "/tmp/arm" || cfg.PollInterval != 50*time.Millisecond || cfg.WaitTimeout != 90*time.Second {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if !cfg.UseFSNotify || cfg.EnPassant != "ignore" || cfg.HumanColor != "black" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ROBOT_EN_PASSANT", "sometimes")
	if _, err := Load(); err == nil {
		t.Fatalf("expected en passant error")
	}
	t.Setenv("ROBOT_EN_PASSANT", "")
	t.Setenv("HUMAN_COLOR", "")
	t.Setenv("IRIS_BASE_URL", "http://iris:3000")
	t.Setenv("IRIS_WS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected IRIS_WS_URL error")
	}
}
