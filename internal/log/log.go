// Package log wires the process-wide slog default to a rotating file with
// human-readable formatting.
package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	charmlog "charm.land/log/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points slog's default logger at a rotating log file. Debug lowers
// the level from info to debug.
func Setup(path string, debug bool) {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Error("could not create log directory", "path", path, "error", err)
		return
	}
	logger := charmlog.NewWithOptions(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
	slog.SetDefault(slog.New(logger))
}
