// Package main implements a microphone capture service that records audio
// sessions from a local input device and stores them as encoded files.
//
// Usage:
//
//	capture [-config path/to/config.json] [-list-devices]
//
// If -config is not specified, the service looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-capture/internal/audio"
	"github.com/oszuidwest/zwfm-capture/internal/capture"
	"github.com/oszuidwest/zwfm-capture/internal/config"
	"github.com/oszuidwest/zwfm-capture/internal/notify"
	"github.com/oszuidwest/zwfm-capture/internal/recording"
	"github.com/oszuidwest/zwfm-capture/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	listDevices := flag.Bool("list-devices", false, "List audio input devices and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *listDevices {
		for _, d := range audio.ListDevices(context.Background()) {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if logFile := setupLogging(cfg.LogSettings()); logFile != nil {
		defer util.SafeClose(logFile, "log file")
	}
	slog.Info("using config file", "path", *configPath)

	notifier := notify.NewCaptureNotifier(cfg)
	manager := recording.NewManager(cfg, newDevice, notifier)
	if !manager.Supported() {
		slog.Warn("capture device not available, recordings will fail until FFmpeg is installed")
	}

	cleanup := recording.NewCleanup(manager.Store(), cfg.RetentionDays)
	cleanup.Start()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	versions := NewVersionChecker()
	go versions.Run(ctx)

	srv := NewServer(cfg, manager, notifier, versions)
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	manager.Shutdown(shutdownCtx)
	cleanup.Stop()
	notifier.Wait()

	slog.Info("shutdown complete")
}

// newDevice returns the FFmpeg-backed capture device for the configured input and codec.
func newDevice(cfg config.Snapshot) capture.Device {
	return audio.NewDevice(cfg.AudioInput, cfg.AudioCodec)
}
