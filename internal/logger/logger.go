package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Global logger instance
	Logger log.Logger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // DEBUG, INFO, WARN, ERROR
	Format     string // console, json
	Color      bool   // enable color output for console
	File       string // rotate logs into this file instead of stdout
	MaxSizeMB  int
	MaxBackups int
}

// Init initializes the global logger
func Init(cfg LogConfig) {
	level := ParseLevel(cfg.Level)

	out, outErr := buildOutput(cfg)
	// Files never get ANSI color
	color := cfg.Color && cfg.File == "" && IsTerminal()

	switch strings.ToLower(cfg.Format) {
	case "json":
		Logger = log.Logger{
			Level:      level,
			TimeFormat: time.RFC3339,
			Writer:     &log.IOWriter{Writer: out},
		}
	default:
		Logger = log.Logger{
			Level:      level,
			TimeFormat: "15:04:05.000",
			Writer: &log.ConsoleWriter{
				ColorOutput:    color,
				QuoteString:    true,
				EndWithMessage: true,
				Writer:         out,
			},
		}
	}

	// log.Info() and friends throughout the codebase go through the default logger
	log.DefaultLogger = Logger
	log.DefaultLogger.SetLevel(level)

	if outErr != nil {
		log.Warn().Err(outErr).Str("path", cfg.File).Msg("Falling back to stdout logging")
	}
}

// buildOutput returns the rotating file writer when a file is configured,
// stdout otherwise. On failure it still returns stdout alongside the error.
func buildOutput(cfg LogConfig) (io.Writer, error) {
	if cfg.File == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}, nil
}

// ParseLevel converts string level to log.Level
func ParseLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "FATAL":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// IsTerminal checks if stdout is a terminal
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
