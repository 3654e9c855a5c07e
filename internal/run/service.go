package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/maauso/audiosplit-api/internal/audio"
)

// Splitter runs one split. *audio.Splitter implements it.
type Splitter interface {
	Split(ctx context.Context, req audio.SplitRequest) (*audio.SplitResult, error)
}

// Files is the storage the service needs after a split: removing the
// consumed upload and mirroring parts to S3. storage.Storage implements it.
type Files interface {
	CleanupUploads(ctx context.Context, paths []string) error
	Publish(ctx context.Context, key string, data io.Reader) (string, error)
}

// Input describes one uploaded file to split.
type Input struct {
	// InputPath is the stored upload.
	InputPath string
	// InputName is the client-supplied file name, kept for history only.
	InputName string
	// SegmentDuration is the window length in seconds.
	SegmentDuration int
	// OverlapDuration is the overlap in seconds.
	OverlapDuration int
}

// Service executes split runs and records them in a Repository.
type Service struct {
	splitter    Splitter
	repo        Repository
	files       Files
	logger      *slog.Logger
	publish     bool
	keepUploads bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublish mirrors every produced part to S3 under runs/<run id>/.
func WithPublish(enabled bool) ServiceOption {
	return func(s *Service) {
		s.publish = enabled
	}
}

// WithKeepUploads controls whether the upload is kept after its run.
func WithKeepUploads(keep bool) ServiceOption {
	return func(s *Service) {
		s.keepUploads = keep
	}
}

// NewService creates a Service. Uploads are kept and nothing is published
// unless configured otherwise.
func NewService(splitter Splitter, repo Repository, files Files, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		splitter:    splitter,
		repo:        repo,
		files:       files,
		logger:      logger,
		keepUploads: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute records a new run, splits the input and stores the outcome.
// The returned run is a snapshot of the terminal state; on failure the
// split error is returned unchanged so callers can classify it.
func (s *Service) Execute(ctx context.Context, in Input) (*Run, *audio.SplitResult, error) {
	run := New()
	run.InputName = in.InputName
	run.InputPath = in.InputPath
	run.SegmentDuration = in.SegmentDuration
	run.OverlapDuration = in.OverlapDuration

	logger := s.logger.With(slog.String("run_id", run.ID))

	if err := s.repo.Save(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("save run: %w", err)
	}

	if err := run.Start(); err != nil {
		return nil, nil, err
	}
	s.save(ctx, run, logger)

	logger.Info("run started",
		slog.String("input", in.InputName),
		slog.Int("segment_duration", in.SegmentDuration),
		slog.Int("overlap_duration", in.OverlapDuration),
	)

	result, err := s.splitter.Split(ctx, audio.SplitRequest{
		InputPath:       in.InputPath,
		SegmentDuration: in.SegmentDuration,
		OverlapDuration: in.OverlapDuration,
	})

	// The run record must reach a terminal state even when the caller left.
	finishCtx := context.WithoutCancel(ctx)

	if !s.keepUploads {
		if cerr := s.files.CleanupUploads(finishCtx, []string{in.InputPath}); cerr != nil {
			logger.Warn("failed to remove upload", slog.String("error", cerr.Error()))
		}
	}

	if err != nil {
		s.finishWithError(finishCtx, run, err, logger)
		return run.Clone(), nil, err
	}

	parts := make([]Part, len(result.Parts))
	for i, p := range result.Parts {
		parts[i] = Part{
			Name:         p.Name,
			DownloadPath: p.DownloadPath,
			StartTime:    p.StartTime,
			Duration:     p.Duration,
		}
	}
	if err := run.Complete(result.TotalDuration, parts); err != nil {
		return nil, nil, err
	}

	if s.publish {
		s.publishParts(finishCtx, run, result.Parts, logger)
	}

	s.save(finishCtx, run, logger)

	logger.Info("run completed",
		slog.Int("total_duration", result.TotalDuration),
		slog.Int("parts", len(parts)),
	)

	return run.Clone(), result, nil
}

func (s *Service) finishWithError(ctx context.Context, run *Run, err error, logger *slog.Logger) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_ = run.Cancel(err.Error())
		logger.Warn("run cancelled", slog.String("error", err.Error()))
	} else {
		code := audio.ErrorCode(err)
		_ = run.Fail(code, err.Error())
		logger.Error("run failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	s.save(ctx, run, logger)
}

// publishParts uploads each part to S3. A failed upload leaves that part
// without a URL; the run itself still completes.
func (s *Service) publishParts(ctx context.Context, run *Run, parts []audio.Part, logger *slog.Logger) {
	for i, p := range parts {
		key := path.Join("runs", run.ID, p.Name)
		url, err := s.publishFile(ctx, key, p.Path)
		if err != nil {
			logger.Warn("failed to publish part",
				slog.String("part", p.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		run.SetPartURL(i, url)
		logger.Debug("published part", slog.String("part", p.Name), slog.String("url", url))
	}
}

func (s *Service) publishFile(ctx context.Context, key, filePath string) (string, error) {
	f, err := os.Open(filePath) // #nosec G304 - path produced by the splitter
	if err != nil {
		return "", fmt.Errorf("open part: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.files.Publish(ctx, key, f)
}

func (s *Service) save(ctx context.Context, run *Run, logger *slog.Logger) {
	if err := s.repo.Save(ctx, run); err != nil {
		logger.Error("failed to save run",
			slog.String("status", string(run.GetStatus())),
			slog.String("error", err.Error()),
		)
	}
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.repo.FindByID(ctx, id)
}

// ListRuns returns up to limit runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.repo.List(ctx, limit)
}
