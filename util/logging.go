// Package util - Process-wide helpers for the detect binaries.
package util

import (
	"io"
	log "log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LogLevelEnv names the environment variable that sets the default log level.
const LogLevelEnv = "DETECT_LOG_LEVEL"

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// An empty string is info.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return log.LevelInfo, errors.Errorf("unknown log level %q", level)
	}
}

// ConfigureLogging installs a text handler on stdout as the default logger.
//
// Arguments:
//   - level: The level name; empty falls back to DETECT_LOG_LEVEL, then info.
//
// Returns:
//   - error: An error for an unknown level name.
func ConfigureLogging(level string) error {
	return configureLogging(os.Stdout, level)
}

func configureLogging(w io.Writer, level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnv)
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	l := log.New(log.NewTextHandler(w, &log.HandlerOptions{
		Level: lvl,
	}))
	log.SetDefault(l)
	return nil
}
