package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"hlspress/internal/api"
	"hlspress/internal/config"
	"hlspress/internal/daemon"
	"hlspress/internal/logging"
	"hlspress/internal/runs"
	"hlspress/internal/services/ffmpeg"
	"hlspress/internal/transcode"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "hlspress.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := runs.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return
	}

	client := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpeg.Binary))
	orchestrator := transcode.New(cfg, client, store, logger)
	server := api.NewServer(cfg, orchestrator, store, logger)

	d, err := daemon.New(cfg, store, server.Handler(), logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("hlspressd shutting down")
}
