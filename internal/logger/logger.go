package logger

import (
	"io"
	"log/slog"
	"os"

	"document-portal/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration.
// With LOG_FILE set, records are also written to a rotating file.
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug", // Only add source in debug mode
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	Logger = slog.New(slog.NewJSONHandler(out, opts))
	Logger.Info("Structured logging initialized", "level", level.String(), "file", cfg.LogFile)
}

// SetOutput replaces the logger with a JSON handler writing to w.
func SetOutput(w io.Writer, level slog.Level) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Helper functions for common log operations
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
