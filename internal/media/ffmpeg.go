package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoDuration is returned when probe metadata has no usable duration field.
	ErrNoDuration = errors.New("could not determine audio duration")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrInvalidWindow is returned when an extraction window is out of range.
	ErrInvalidWindow = errors.New("invalid window: start must be non-negative and duration positive")
)

// FFmpegToolkit implements Toolkit using the ffmpeg and ffprobe CLIs.
type FFmpegToolkit struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegToolkit creates a new FFmpegToolkit.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegToolkit(ffmpegPath, ffprobePath string) *FFmpegToolkit {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegToolkit{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Verify interface implementation at compile time.
var _ Toolkit = (*FFmpegToolkit)(nil)

// probeOutput mirrors the subset of `ffprobe -print_format json -show_format`
// that we read.
type probeOutput struct {
	Format *struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration in seconds of a media file.
// It runs ffprobe with JSON output and reads format.duration.
func (t *FFmpegToolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput extracts format.duration from ffprobe JSON output.
func parseProbeOutput(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if out.Format == nil || out.Format.Duration == "" {
		return 0, ErrNoDuration
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, out.Format.Duration)
	}

	return duration, nil
}

// ExtractSegment extracts [start, start+duration) of input into output.
func (t *FFmpegToolkit) ExtractSegment(ctx context.Context, input, output string, start, duration int) error {
	if start < 0 || duration <= 0 {
		return fmt.Errorf("%w: start=%d, duration=%d", ErrInvalidWindow, start, duration)
	}
	return t.runFFmpeg(ctx, extractArgs(input, output, start, duration))
}

// extractArgs builds the ffmpeg argument list for a segment extraction.
func extractArgs(input, output string, start, duration int) []string {
	return []string{
		"-y", // Overwrite output file without asking
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-i", input,
		"-vn", // Drop cover art and other video streams
		output,
	}
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (t *FFmpegToolkit) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
