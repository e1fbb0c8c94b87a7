// Package logger builds the zap logger shared by the application.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the [log] section of the config file
type Config struct {
	Level      string // debug, info, warn or error
	File       string // Empty logs to stderr only
	MaxSize    int    // Megabytes per file before rotation
	MaxBackups int    // Rotated files to keep
	MaxAge     int    // Days to keep rotated files
}

// Logger owns the zap logger and the rotating file behind it
type Logger struct {
	*zap.Logger
	file *lumberjack.Logger
}

// ParseLevel maps a config level name to a zap level, "" being info
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unsupported log level: %s", level)
	}
}

// New logs to stderr and, when cfg.File is set, to a rotated file as well
func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, console io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	l := &Logger{}
	output := zapcore.AddSync(console)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 7),
			Compress:   true,
		}
		output = zapcore.NewMultiWriteSyncer(output, zapcore.AddSync(l.file))
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), output, level)
	l.Logger = zap.New(core)
	return l, nil
}

// Close flushes buffered entries and releases the log file
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
