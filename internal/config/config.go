package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	RobotID         string
	OutputDir       string
	PollInterval    time.Duration
	WaitTimeout     time.Duration
	UseFSNotify     bool
	CalibrationFile string
	EnPassant       string
	HumanColor      string

	StockfishPath      string
	ChessDefaultPreset string
	EngineSeed         int64

	RedisURL      string
	SessionTTLSec int
	DatabaseURL   string
	HistoryLimit  int
	MetricsAddr   string
	MessagesDir   string

	IrisBaseURL string
	IrisWSURL   string
	IrisRoom    string
	BotPrefix   string
}

// RelayEnabled reports whether moves come from the chat relay instead of stdin.
func (c *AppConfig) RelayEnabled() bool {
	return c.IrisBaseURL != ""
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RobotID:            "arm-1",
		OutputDir:          "robot_output",
		PollInterval:       200 * time.Millisecond,
		EnPassant:          "relocate",
		HumanColor:         "white",
		ChessDefaultPreset: "level3",
		SessionTTLSec:      86400,
		HistoryLimit:       5,
		BotPrefix:          "!robot",
	}

	if v := strings.TrimSpace(os.Getenv("ROBOT_ID")); v != "" {
		cfg.RobotID = v
	}
	if v := strings.TrimSpace(os.Getenv("ROBOT_OUTPUT_DIR")); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ROBOT_POLL_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROBOT_WAIT_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WaitTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROBOT_USE_FSNOTIFY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UseFSNotify = b
		}
	}
	cfg.CalibrationFile = strings.TrimSpace(os.Getenv("ROBOT_CALIBRATION_FILE"))
	if v := strings.TrimSpace(os.Getenv("ROBOT_EN_PASSANT")); v != "" {
		cfg.EnPassant = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("HUMAN_COLOR")); v != "" {
		cfg.HumanColor = strings.ToLower(v)
	}

	// Engine
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("CHESS_DEFAULT_PRESET")); v != "" {
		cfg.ChessDefaultPreset = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_RANDOM_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.EngineSeed = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("ROBOT_SESSION_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLSec = n
		}
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("ROBOT_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.IrisRoom = strings.TrimSpace(os.Getenv("IRIS_ROOM"))
	if v := strings.TrimSpace(os.Getenv("BOT_PREFIX")); v != "" {
		cfg.BotPrefix = v
	}

	switch cfg.EnPassant {
	case "relocate", "ignore":
	default:
		return nil, errors.New("ROBOT_EN_PASSANT must be relocate or ignore")
	}
	switch cfg.HumanColor {
	case "white", "black":
	default:
		return nil, errors.New("HUMAN_COLOR must be white or black")
	}
	if cfg.RelayEnabled() {
		if cfg.IrisWSURL == "" {
			return nil, errors.New("IRIS_WS_URL is required")
		}
		if cfg.IrisRoom == "" {
			return nil, errors.New("IRIS_ROOM is required")
		}
	}

	return cfg, nil
}
