package logging

import (
	"io"
	"os"
	"strings"

	"keygate/internal/config"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. When a log file is configured the output is
// duplicated to a size-rotated file.
func New(cfg config.LogConfig) (*pterm.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	var writer io.Writer = os.Stdout

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
			LocalTime:  true,
		}
		writer = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	logger := pterm.DefaultLogger.
		WithLevel(ParseLevel(cfg.Level)).
		WithWriter(writer)

	return logger, closer
}

func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "fatal":
		return pterm.LogLevelFatal
	default:
		return pterm.LogLevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
