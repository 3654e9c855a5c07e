// Package bootstrap provides dependency initialization for the audio split service.
package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/config"
	"github.com/maauso/audiosplit-api/internal/media"
	"github.com/maauso/audiosplit-api/internal/run"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the binaries.
type Dependencies struct {
	Storage    storage.Storage
	Splitter   *audio.Splitter
	RunService *run.Service

	closers []io.Closer
}

// NewDependencies creates and initializes all dependencies for the application.
// Callers must Close the result.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	toolkit := media.NewFFmpegToolkit(cfg.FFmpegPath, cfg.FFprobePath)

	splitter := audio.NewSplitter(store, toolkit, logger,
		audio.WithFormat(cfg.OutputFormat),
		audio.WithConcurrency(cfg.MaxConcurrentSegments),
	)

	deps := &Dependencies{
		Storage:  store,
		Splitter: splitter,
	}

	repo, err := initRepository(cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	deps.RunService = run.NewService(splitter, repo, store, logger,
		run.WithPublish(cfg.S3Enabled()),
		run.WithKeepUploads(cfg.KeepUploads),
	)

	return deps, nil
}

// Close releases the resources held by the dependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// initRepository opens SQLite when DB_PATH is set and falls back to memory.
func initRepository(cfg *config.Config, logger *slog.Logger, deps *Dependencies) (run.Repository, error) {
	if cfg.DBPath == "" {
		logger.Info("run history kept in memory")
		return run.NewMemoryRepository(), nil
	}

	repo, err := run.NewSQLiteRepository(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	deps.closers = append(deps.closers, repo)

	logger.Info("run history stored in SQLite",
		slog.String("db_path", cfg.DBPath),
	)
	return repo, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	local, err := storage.NewLocalStorage(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	if !cfg.S3Enabled() {
		logger.Info("local storage configured",
			slog.String("upload_dir", local.UploadDir()),
			slog.String("output_dir", local.OutputDir()),
		)
		return local, nil
	}

	s3Store, err := storage.NewS3Storage(local, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 publishing configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.String("output_dir", local.OutputDir()),
	)
	return s3Store, nil
}
