// Package obslog owns the process-wide zap logger.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 전역 로거. 콘솔+파일 동시 출력 지원.
var (
	global = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// L는 전역 로거를 반환.
func L() *zap.Logger { return global }

// SetLevel changes the global level at runtime, e.g. to debug a stuck handshake.
func SetLevel(s string) { level.SetLevel(parseLevel(s)) }

// Settings mirrors the LOG_* environment variables.
type Settings struct {
	Level   string
	Console bool
	ToFile  bool
	File    string
	Caller  bool
	Format  string
}

// SettingsFromEnv reads LOG_LEVEL, LOG_TO_CONSOLE, LOG_TO_FILE, LOG_FILE, LOG_FORMAT and LOG_CALLER.
func SettingsFromEnv() Settings {
	return Settings{
		Level:   env("LOG_LEVEL", "info"),
		Console: envBool("LOG_TO_CONSOLE", true),
		ToFile:  envBool("LOG_TO_FILE", true),
		File:    env("LOG_FILE", filepath.Join("logs", "robot.log")),
		Caller:  envBool("LOG_CALLER", false),
		Format:  env("LOG_FORMAT", "legacy"),
	}
}

// InitFromEnv는 환경설정으로 전역 로거를 초기화.
func InitFromEnv() error {
	s := SettingsFromEnv()
	level.SetLevel(parseLevel(s.Level))
	logger, err := build(s, level)
	if err != nil {
		return err
	}
	global = logger
	return nil
}

// New builds a standalone logger with its own fixed level.
func New(s Settings) (*zap.Logger, error) {
	return build(s, zap.NewAtomicLevelAt(parseLevel(s.Level)))
}

// Sync flushes the global logger; stdout sync errors are ignored.
func Sync() { _ = global.Sync() }

func build(s Settings, lvl zap.AtomicLevel) (*zap.Logger, error) {
	encConfig, ok := encoders[strings.ToLower(strings.TrimSpace(s.Format))]
	if !ok {
		encConfig = encoders["legacy"]
	}

	var sinks []zapcore.WriteSyncer
	if s.Console {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	if s.ToFile && strings.TrimSpace(s.File) != "" {
		if dir := filepath.Dir(s.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f, _, err := zap.Open(s.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, f)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}

	core := zapcore.NewCore(encConfig.encoder(), zapcore.NewMultiWriteSyncer(sinks...), lvl)
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if s.Caller || encConfig.caller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

type encoderSpec struct {
	encoder func() zapcore.Encoder
	caller  bool
}

// legacy 는 "2006-01-02 15:04:05 | INFO | caller | msg" 형식
var encoders = map[string]encoderSpec{
	"legacy": {caller: true, encoder: func() zapcore.Encoder {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}},
	"console": {encoder: func() zapcore.Encoder {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}},
	"json": {encoder: func() zapcore.Encoder {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}},
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	b, err := strconv.ParseBool(env(k, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return b
}
