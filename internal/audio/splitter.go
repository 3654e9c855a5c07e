// Package audio implements the segmentation engine: it plans overlapping,
// fixed-length windows over an input file and materializes each window as
// its own output file through an external transcoder.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
)

// Defaults shared by the HTTP and CLI entry points.
const (
	// DefaultSegmentDuration is the segment length in seconds when none is given.
	DefaultSegmentDuration = 20
	// DefaultOverlapDuration is the overlap in seconds when none is given.
	DefaultOverlapDuration = 5
	// DefaultFormat is the output container of every segment.
	DefaultFormat = "mp3"
	// DefaultDownloadPrefix is the URL path under which parts are served.
	DefaultDownloadPrefix = "/audio/download"
)

// Toolkit is the media facility the splitter depends on.
type Toolkit interface {
	DurationSource
	Extractor
}

// OutputDirectory is the per-run output location. Reset must leave it
// existing and empty. storage.LocalStorage implements it.
type OutputDirectory interface {
	Reset(ctx context.Context) error
	OutputDir() string
}

// SplitRequest is the immutable input of one run.
type SplitRequest struct {
	// InputPath references a readable audio file not owned by the splitter.
	InputPath string
	// SegmentDuration is the window length in seconds. Must be positive.
	SegmentDuration int
	// OverlapDuration is the number of seconds shared by consecutive windows.
	// Must be non-negative and less than SegmentDuration.
	OverlapDuration int
}

// Settings echoes the parameters a run was executed with.
type Settings struct {
	SegmentDuration int `json:"segmentDuration"`
	OverlapDuration int `json:"overlapDuration"`
}

// Part describes one materialized segment.
type Part struct {
	// Name is the output file name, e.g. "part_1.mp3".
	Name string
	// Path is the location of the file on local disk.
	Path string
	// DownloadPath is the relative URL the file is served under.
	DownloadPath string
	// StartTime is the offset of the part in the original track, in seconds.
	StartTime int
	// Duration is the length of the part in seconds.
	Duration int
}

// SplitResult is the outcome of a successful run.
// It is only built once every segment has been materialized.
type SplitResult struct {
	TotalDuration int
	Settings      Settings
	Parts         []Part
}

// Splitter orchestrates a run: reset output directory, probe, validate,
// plan, materialize and assemble the result.
//
// A Splitter owns one output directory and admits one run at a time; a
// concurrent caller waits until the previous run finishes or its context ends.
type Splitter struct {
	outDir         OutputDirectory
	prober         *DurationProber
	materializer   *Materializer
	format         string
	downloadPrefix string
	concurrency    int
	logger         *slog.Logger
	gate           chan struct{}
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithFormat sets the output container/extension of every segment.
func WithFormat(format string) Option {
	return func(s *Splitter) {
		if format != "" {
			s.format = format
		}
	}
}

// WithConcurrency sets how many segments may be extracted at once.
// Values below 2 keep the sequential behavior.
func WithConcurrency(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDownloadPrefix sets the URL path prefix used for Part.DownloadPath.
func WithDownloadPrefix(prefix string) Option {
	return func(s *Splitter) {
		s.downloadPrefix = prefix
	}
}

// NewSplitter creates a Splitter writing into outDir using toolkit.
func NewSplitter(outDir OutputDirectory, toolkit Toolkit, logger *slog.Logger, opts ...Option) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Splitter{
		outDir:         outDir,
		prober:         NewDurationProber(toolkit),
		format:         DefaultFormat,
		downloadPrefix: DefaultDownloadPrefix,
		concurrency:    1,
		logger:         logger,
		gate:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.materializer = NewMaterializer(toolkit, outDir.OutputDir(), s.format, s.concurrency, logger)
	return s
}

// Split runs the whole pipeline for req. Each step gates the next; the first
// failure is returned and nothing is rolled back.
func (s *Splitter) Split(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	logger := s.logger.With(slog.String("input", filepath.Base(req.InputPath)))

	if err := s.outDir.Reset(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryAccess, err)
	}

	totalDuration, err := s.prober.Probe(ctx, req.InputPath)
	if err != nil {
		return nil, err
	}

	if err := ValidateParams(req.SegmentDuration, req.OverlapDuration); err != nil {
		return nil, err
	}

	segments, err := Plan(totalDuration, req.SegmentDuration, req.OverlapDuration)
	if err != nil {
		return nil, err
	}

	logger.Info("planned segments",
		slog.Int("total_duration", totalDuration),
		slog.Int("segment_duration", req.SegmentDuration),
		slog.Int("overlap_duration", req.OverlapDuration),
		slog.Int("segments", len(segments)),
	)

	paths, err := s.materializer.Materialize(ctx, req.InputPath, segments)
	if err != nil {
		return nil, err
	}

	result := s.assemble(totalDuration, req, segments, paths)

	logger.Info("split completed",
		slog.Int("parts", len(result.Parts)),
	)

	return result, nil
}

// assemble builds the SplitResult. Start times follow index * stride.
func (s *Splitter) assemble(totalDuration int, req SplitRequest, segments []Segment, paths []string) *SplitResult {
	stride := Stride(req.SegmentDuration, req.OverlapDuration)

	parts := make([]Part, len(segments))
	for i, seg := range segments {
		name := seg.FileName(s.format)
		parts[i] = Part{
			Name:         name,
			Path:         paths[i],
			DownloadPath: path.Join(s.downloadPrefix, name),
			StartTime:    i * stride,
			Duration:     seg.Duration,
		}
	}

	return &SplitResult{
		TotalDuration: totalDuration,
		Settings: Settings{
			SegmentDuration: req.SegmentDuration,
			OverlapDuration: req.OverlapDuration,
		},
		Parts: parts,
	}
}

// acquire waits for the run gate.
func (s *Splitter) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running split: %w", ctx.Err())
	}
}

func (s *Splitter) release() {
	<-s.gate
}
