package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"eduops/internal/config"
)

const (
	logLevelEnvKey  = "EDUOPS_LOG_LEVEL"
	logFormatEnvKey = "EDUOPS_LOG_FORMAT"
)

// levelSetting is one place a log level may come from. origin is how the
// setting is named back to the user.
type levelSetting struct {
	origin string
	value  string
}

// setupLogging installs the process logger on stderr. The first non-empty
// level among --log-level, EDUOPS_LOG_LEVEL and the config file wins. An
// unparseable flag fails the command; anything else degrades to the default
// level and returns warnings for the caller to print.
func setupLogging(flagLevel, configLevel string) ([]string, error) {
	return setupLoggingTo(os.Stderr, flagLevel, configLevel)
}

func setupLoggingTo(w io.Writer, flagLevel, configLevel string) ([]string, error) {
	setting := pickLevel(
		levelSetting{origin: "--log-level", value: flagLevel},
		levelSetting{origin: logLevelEnvKey, value: os.Getenv(logLevelEnvKey)},
		levelSetting{origin: "log_level", value: configLevel},
	)

	var warnings []string
	level, err := parseLogLevel(setting.value)
	if err != nil {
		if setting.origin == "--log-level" {
			return nil, fmt.Errorf("invalid --log-level %q", setting.value)
		}
		warnings = append(warnings, fmt.Sprintf("warning: invalid %s=%q; using %s", setting.origin, setting.value, config.DefaultLogLevel))
		level, _ = parseLogLevel("")
	}

	handler, ok := newLogHandler(w, level, os.Getenv(logFormatEnvKey))
	if !ok {
		warnings = append(warnings, fmt.Sprintf("warning: unknown %s=%q; using text", logFormatEnvKey, os.Getenv(logFormatEnvKey)))
	}
	slog.SetDefault(slog.New(handler))
	return warnings, nil
}

func pickLevel(settings ...levelSetting) levelSetting {
	for _, setting := range settings {
		if strings.TrimSpace(setting.value) != "" {
			return setting
		}
	}
	return levelSetting{origin: "default", value: config.DefaultLogLevel}
}

// parseLogLevel accepts slog level names, "warning", or a numeric level.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		value = config.DefaultLogLevel
	}
	switch value {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
}

// newLogHandler builds a text or JSON handler. ok is false when format is
// not recognized and text was used instead.
func newLogHandler(w io.Writer, level slog.Level, format string) (slog.Handler, bool) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), true
	case "json":
		return slog.NewJSONHandler(w, opts), true
	default:
		return slog.NewTextHandler(w, opts), false
	}
}
