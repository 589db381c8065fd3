package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/server"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logConfig := logger.DefaultConfig()
	logConfig.FilePath = cfg.LogFile
	logConfig.Level = logger.ParseLevel(cfg.LogLevel)
	logConfig.Console = true
	if err := logger.Init(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to create server", logger.Err(err))
		os.Exit(1)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.Err(err))
		}
	}()

	go func() {
		logger.Info("AgriSense server starting", logger.F("port", cfg.Port))
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", logger.Err(err))
	}
}
