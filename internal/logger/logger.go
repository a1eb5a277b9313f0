package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"docqa-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging. LOG_LEVEL wins over the gin
// mode default; debug mode logs text with source locations, otherwise JSON.
func InitLogger(cfg *config.Config) {
	Logger = New(os.Stdout, cfg.GinMode, cfg.LogLevel)
	Logger.Info("Structured logging initialized", "gin_mode", cfg.GinMode)
}

// New builds a logger writing to w.
func New(w io.Writer, ginMode, level string) *slog.Logger {
	lvl := slog.LevelInfo
	if ginMode == "debug" {
		lvl = slog.LevelDebug
	}
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(strings.ToUpper(level))); err == nil {
			lvl = parsed
		}
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: ginMode == "debug",
	}
	if ginMode == "debug" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// With returns a child logger carrying args, or a discarding logger before
// InitLogger runs.
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
