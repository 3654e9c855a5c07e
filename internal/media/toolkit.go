// Package media provides the audio probing and extraction capabilities used by
// the segmentation engine. Implementations shell out to ffprobe and ffmpeg.
package media

import "context"

// Toolkit defines the external media facility consumed by the splitter.
// It has two capabilities: reading the duration of a media file and extracting
// a time window of it into a new file.
type Toolkit interface {
	// ProbeDuration returns the playable duration of the file at path in
	// seconds. Fractional seconds are preserved; callers decide on rounding.
	// Returns ErrNoDuration if the metadata carries no usable duration.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// ExtractSegment writes the window [start, start+duration) seconds of
	// input into output. The container and codec are inferred from the
	// output file extension. An existing output file is overwritten.
	ExtractSegment(ctx context.Context, input, output string, start, duration int) error
}
