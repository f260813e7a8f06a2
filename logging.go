package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oszuidwest/zwfm-capture/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging installs the default slog logger. Output goes to stderr and,
// when a log file is configured, also to a size-rotated file which is
// returned so it can be closed on shutdown.
func setupLogging(cfg config.LogConfig) *lumberjack.Logger {
	var out io.Writer = os.Stderr
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, file)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})))
	return file
}

// parseLevel maps a config level name to a slog level, defaulting to info.
func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		return slog.LevelInfo
	}
	return level
}
