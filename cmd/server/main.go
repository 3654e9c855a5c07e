// Package main provides the entry point for the audio split HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/maauso/audiosplit-api/internal/bootstrap"
	"github.com/maauso/audiosplit-api/internal/config"
	"github.com/maauso/audiosplit-api/internal/server"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 30 * time.Second

func main() {
	_ = godotenv.Load()

	if err := serve(); err != nil {
		fmt.Fprintln(os.Stderr, "audiosplit-server:", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting audio split API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.Int("segment_duration_sec", cfg.SegmentDurationSec),
		slog.Int("overlap_duration_sec", cfg.OverlapDurationSec),
		slog.Int("max_concurrent_segments", cfg.MaxConcurrentSegments),
		slog.String("max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes()))),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("failed to close dependencies", slog.String("error", err.Error()))
		}
	}()

	handlers := server.NewHandlers(deps.RunService, deps.Storage, logger,
		server.WithDefaults(cfg.SegmentDurationSec, cfg.OverlapDurationSec),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)
	router := server.NewRouter(handlers, logger, server.Config{AllowedOrigins: cfg.Origins()})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      30 * time.Minute, // splits run inside the upload request
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("grace", shutdownGrace))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
