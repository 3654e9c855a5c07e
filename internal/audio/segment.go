package audio

import (
	"fmt"
	"strconv"
)

// segmentPrefix is the name prefix of every planned segment.
// Downstream consumers rely on the part_N naming.
const segmentPrefix = "part_"

// Segment is a planned time window of the source audio, in whole seconds.
type Segment struct {
	// Start is the offset of the window in the source audio.
	Start int
	// Duration is the length of the window. Always positive.
	Duration int
	// Name is the 1-based sequential identifier, e.g. "part_3".
	Name string
}

// End returns the offset where the window stops.
func (s Segment) End() int {
	return s.Start + s.Duration
}

// FileName returns the output file name for the given container format.
func (s Segment) FileName(format string) string {
	return s.Name + "." + format
}

// SegmentName returns the name of the n-th segment (1-based).
func SegmentName(n int) string {
	return segmentPrefix + strconv.Itoa(n)
}

// ValidateParams checks the segment and overlap lengths.
// The stride (segment - overlap) must be strictly positive or planning never terminates.
func ValidateParams(segmentDuration, overlapDuration int) error {
	if segmentDuration <= 0 {
		return fmt.Errorf("%w: segment duration must be positive, got %d", ErrInvalidParameters, segmentDuration)
	}
	if overlapDuration < 0 {
		return fmt.Errorf("%w: overlap duration must not be negative, got %d", ErrInvalidParameters, overlapDuration)
	}
	if overlapDuration >= segmentDuration {
		return fmt.Errorf("%w: overlap duration (%d) must be less than segment duration (%d)",
			ErrInvalidParameters, overlapDuration, segmentDuration)
	}
	return nil
}

// Stride returns the advance between consecutive segment starts.
func Stride(segmentDuration, overlapDuration int) int {
	return segmentDuration - overlapDuration
}

// Plan splits totalDuration seconds into overlapping windows of
// segmentDuration seconds, consecutive windows sharing overlapDuration seconds.
//
// The last window is clipped to the end of the input. Once the next start
// plus the overlap reaches the end, no further window is emitted, unless only
// one window exists so far. A non-positive totalDuration yields an empty plan.
func Plan(totalDuration, segmentDuration, overlapDuration int) ([]Segment, error) {
	if err := ValidateParams(segmentDuration, overlapDuration); err != nil {
		return nil, err
	}
	if totalDuration <= 0 {
		return []Segment{}, nil
	}

	stride := Stride(segmentDuration, overlapDuration)
	segments := make([]Segment, 0, totalDuration/stride+1)
	currentStart := 0
	partNumber := 1

	for currentStart < totalDuration {
		remaining := totalDuration - currentStart

		segments = append(segments, Segment{
			Start:    currentStart,
			Duration: min(segmentDuration, remaining),
			Name:     SegmentName(partNumber),
		})

		currentStart += stride
		partNumber++

		// Tail-merge: measured by overlap reach, not segment reach.
		if currentStart+overlapDuration >= totalDuration && len(segments) > 1 {
			break
		}
	}

	return segments, nil
}
