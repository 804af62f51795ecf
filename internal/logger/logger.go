package logger

import (
	"io"
	"log/slog"
	"os"

	"cv-rag-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger installs the process wide JSON logger. Debug level and source
// locations are only enabled when gin runs in debug mode.
func InitLogger(cfg *config.Config) {
	debug := cfg.GinMode == "debug"
	Logger = New(os.Stdout, debug)

	if debug {
		Logger.Debug("Structured logging initialized", "level", slog.LevelDebug.String(), "service", cfg.ServiceName)
	} else {
		Logger.Info("Structured logging initialized", "level", slog.LevelInfo.String(), "service", cfg.ServiceName)
	}
}

// New builds a JSON logger writing to w. The CLI uses it to log to stderr.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

// With returns a child of the global logger, or a discarding logger when
// InitLogger has not run.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Logger.With(args...)
}

func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
