package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LevelCritical marks failures an operator must inspect before re-running.
const LevelCritical = slog.Level(12)

// NewLogger builds the process logger. Format "text" uses a colourised
// handler for terminals; anything else writes JSON.
func NewLogger(level, format string) *slog.Logger {
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:       lvl,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: renameCritical,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: renameCritical,
	}))
}

// ParseLevel accepts slog names plus the Python-style WARNING and CRITICAL
// spellings. Unknown values fall back to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "critical", "fatal":
		return LevelCritical
	default:
		return slog.LevelWarn
	}
}

func renameCritical(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// IsTransient reports whether err looks like a timeout, cancellation or
// network fault rather than bad input or a broken installation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// LogFailure logs a fatal command error at critical level, or at error level
// with transient=true when a re-run may succeed unchanged.
func LogFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if IsTransient(err) {
		logger.Log(ctx, slog.LevelError, msg, "error", err, "transient", true)
		return
	}
	logger.Log(ctx, LevelCritical, msg, "error", err, "transient", false)
}
