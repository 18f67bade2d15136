package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger. Production gets JSON output,
// everything else the text handler.
func Init(environment, level string) *slog.Logger {
	return InitTo(os.Stderr, environment, level)
}

func InitTo(w io.Writer, environment, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(environment, "production") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithCouple scopes a logger to one couple and its local member.
func WithCouple(logger *slog.Logger, coupleID, userID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("couple_id", coupleID, "user_id", userID)
}

// Discard is used by tests and commands that want silence.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
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
