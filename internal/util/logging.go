// Package util holds the HTTP middleware and logging setup shared by the
// interview binaries.
package util

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs a JSON slog logger at level (debug, info, warn,
// error) as the default and returns it. Unknown levels mean info.
func InitLogger(level string) *slog.Logger {
	return initLogger(os.Stdout, level)
}

// InitStderrLogger is InitLogger writing to stderr, for binaries whose
// stdout carries a protocol (the MCP stdio server).
func InitStderrLogger(level string) *slog.Logger {
	return initLogger(os.Stderr, level)
}

func initLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loggerContextKey struct{}

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, or the default one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
