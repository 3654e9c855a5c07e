package audio

import (
	"errors"
	"fmt"
)

// Static errors identifying the stage of a failed split run.
// Callers match them with errors.Is; every failure is terminal for the run.
var (
	// ErrInvalidParameters is returned when the segment length is not positive
	// or the overlap is negative or not shorter than the segment length.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrProbeFailed is returned when the input duration cannot be determined.
	ErrProbeFailed = errors.New("probe failed")
	// ErrDirectoryAccess is returned when the output directory cannot be reset.
	ErrDirectoryAccess = errors.New("output directory access failed")
	// ErrTranscodeFailed is matched by every *TranscodeError.
	ErrTranscodeFailed = errors.New("transcode failed")
)

// TranscodeError reports the segment whose extraction failed and why.
type TranscodeError struct {
	// Segment is the name of the failing segment, e.g. "part_2".
	Segment string
	// Err is the underlying extraction error.
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s: segment %s: %v", ErrTranscodeFailed, e.Segment, e.Err)
}

// Is reports whether target is ErrTranscodeFailed.
func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscodeFailed
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Error codes reported to clients for each failure stage.
const (
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeProbeFailed       = "PROBE_FAILED"
	CodeDirectoryAccess   = "DIRECTORY_ACCESS"
	CodeTranscodeFailed   = "TRANSCODE_FAILED"
	CodeInternal          = "INTERNAL"
)

// ErrorCode returns the client-facing code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParameters):
		return CodeInvalidParameters
	case errors.Is(err, ErrProbeFailed):
		return CodeProbeFailed
	case errors.Is(err, ErrDirectoryAccess):
		return CodeDirectoryAccess
	case errors.Is(err, ErrTranscodeFailed):
		return CodeTranscodeFailed
	default:
		return CodeInternal
	}
}
