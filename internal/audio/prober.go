package audio

import (
	"context"
	"fmt"
	"math"
)

// DurationSource reports the fractional duration of a media file in seconds.
// media.FFmpegToolkit implements it.
type DurationSource interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// DurationProber determines the whole-second duration of an input file.
type DurationProber struct {
	source DurationSource
}

// NewDurationProber creates a DurationProber backed by source.
func NewDurationProber(source DurationSource) *DurationProber {
	return &DurationProber{source: source}
}

// Probe returns the duration of the file at path, floored to whole seconds.
// Any failure of the underlying source is reported as ErrProbeFailed.
func (p *DurationProber) Probe(ctx context.Context, path string) (int, error) {
	duration, err := p.source.ProbeDuration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return 0, fmt.Errorf("%w: unusable duration %v", ErrProbeFailed, duration)
	}
	return int(math.Floor(duration)), nil
}
