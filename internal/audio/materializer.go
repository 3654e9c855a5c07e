package audio

import (
	"context"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Extractor cuts a time window of an input file into a new output file.
// media.FFmpegToolkit implements it.
type Extractor interface {
	ExtractSegment(ctx context.Context, input, output string, start, duration int) error
}

// Materializer turns planned segments into output files inside outputDir.
type Materializer struct {
	extractor   Extractor
	outputDir   string
	format      string
	concurrency int
	logger      *slog.Logger
}

// NewMaterializer creates a Materializer writing <name>.<format> files into
// outputDir. A concurrency below 2 extracts segments one at a time.
func NewMaterializer(extractor Extractor, outputDir, format string, concurrency int, logger *slog.Logger) *Materializer {
	if format == "" {
		format = DefaultFormat
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		extractor:   extractor,
		outputDir:   outputDir,
		format:      format,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OutputPath returns the file path a segment is materialized to.
func (m *Materializer) OutputPath(seg Segment) string {
	return filepath.Join(m.outputDir, seg.FileName(m.format))
}

// Materialize extracts every segment of inputPath and returns the output
// paths in planned order.
//
// The first failing segment aborts the run with a *TranscodeError and no
// further segment is started. Files already written are left in place; the
// next run's directory reset removes them.
func (m *Materializer) Materialize(ctx context.Context, inputPath string, segments []Segment) ([]string, error) {
	if m.concurrency > 1 && len(segments) > 1 {
		return m.materializeParallel(ctx, inputPath, segments)
	}

	paths := make([]string, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, &TranscodeError{Segment: seg.Name, Err: err}
		}

		output, err := m.extract(ctx, inputPath, seg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, output)
	}

	return paths, nil
}

// materializeParallel extracts with at most m.concurrency invocations in
// flight. Results keep planned order and the first error wins.
func (m *Materializer) materializeParallel(ctx context.Context, inputPath string, segments []Segment) ([]string, error) {
	paths := make([]string, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, seg := range segments {
		g.Go(func() error {
			// Do not start new work once a sibling has failed.
			if gctx.Err() != nil {
				if ctx.Err() != nil {
					return &TranscodeError{Segment: seg.Name, Err: ctx.Err()}
				}
				return nil
			}

			output, err := m.extract(gctx, inputPath, seg)
			if err != nil {
				return err
			}
			paths[i] = output
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}

// extract runs a single extraction and tags its failure with the segment name.
func (m *Materializer) extract(ctx context.Context, inputPath string, seg Segment) (string, error) {
	output := m.OutputPath(seg)

	m.logger.Debug("extracting segment",
		slog.String("segment", seg.Name),
		slog.Int("start", seg.Start),
		slog.Int("duration", seg.Duration),
	)

	if err := m.extractor.ExtractSegment(ctx, inputPath, output, seg.Start, seg.Duration); err != nil {
		m.logger.Error("segment extraction failed",
			slog.String("segment", seg.Name),
			slog.String("error", err.Error()),
		)
		return "", &TranscodeError{Segment: seg.Name, Err: err}
	}

	return output, nil
}
