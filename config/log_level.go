package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLogLevel accepts level names as well as the numeric levels of the
// original tool (10 = debug, 20 = info, 30 = warning, 40 = error).
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "10":
		return slog.LevelDebug, nil
	case "", "info", "20":
		return slog.LevelInfo, nil
	case "warn", "warning", "30":
		return slog.LevelWarn, nil
	case "error", "40":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
