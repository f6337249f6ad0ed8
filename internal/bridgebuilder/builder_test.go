package bridgebuilder

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-robot-bridge/internal/config"
	"github.com/park285/cheese-robot-bridge/internal/service/robot"
)

func baseConfig(t *testing.T) *config.AppConfig {
	return &config.AppConfig{
		RobotID:            "arm-test",
		OutputDir:          t.TempDir(),
		PollInterval:       10 * time.Millisecond,
		EnPassant:          "relocate",
		HumanColor:         "white",
		ChessDefaultPreset: "level3",
		EngineSeed:         7,
		SessionTTLSec:      60,
	}
}

func TestNewInMemoryBridge(t *testing.T) {
	d, err := New(baseConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer d.Close()
	defer d.Service.Close()

	state, err := d.Service.Start(context.Background(), robot.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.RobotID != "arm-test" || state.Storage.WhiteCapture != 16 || state.Storage.BlackQueens != 8 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if d.Emitter.Dir() == "" {
		t.Fatalf("emitter has no directory")
	}
}

func TestNewWithRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := baseConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	d, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer d.Close()
	defer d.Service.Close()

	if _, err := d.Service.Start(context.Background(), robot.StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !mr.Exists("robot:session:arm-test") {
		t.Fatalf("snapshot not written to redis")
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	cfg := baseConfig(t)
	cfg.EnPassant = "sometimes"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected en passant error")
	}
	cfg = baseConfig(t)
	cfg.CalibrationFile = "/does/not/exist.yaml"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected calibration error")
	}
	cfg = baseConfig(t)
	cfg.StockfishPath = "definitely-not-a-stockfish-binary"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected engine error")
	}
}
