package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/scribe/config"
	"github.com/bnema/scribe/internal/adapter/converter/ffmpeg"
	"github.com/bnema/scribe/internal/adapter/engine/whisper"
	HTTPAdapter "github.com/bnema/scribe/internal/adapter/http"
	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/bnema/scribe/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(cfg.LogLevel, os.Stderr)
	log := logger.Base()

	log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("starting scribe")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}
	if err := os.MkdirAll(cfg.UploadDir(), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create upload directory")
	}

	converter := ffmpeg.NewConverter(cfg.FfmpegBin)
	engine := whisper.NewEngine(cfg.WhisperBin, cfg.ModelsDir, converter)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := engine.Initialize(initCtx); err != nil {
		initCancel()
		if errors.Is(err, domain.ErrEngineMissing) {
			log.Fatal().Err(err).Str("bin", cfg.WhisperBin).Msg("whisper binary not found, set WHISPER_BIN")
		}
		log.Fatal().Err(err).Msg("engine initialization failed")
	}
	initCancel()

	eventBus := service.NewEventBus()
	notifier := service.NewDispatcher(eventBus)
	jobSvc := service.NewJobService(engine, converter, notifier, cfg.MaxConcurrentJobs)

	server := HTTPAdapter.NewServer(jobSvc, eventBus, cfg.UploadDir(), cfg.MaxUploadSizeMB)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}
	}()

	log.Info().Str("addr", addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
