package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for state-machine misuse. Pipeline stages carry their own
// typed errors below so callers can map each failure to a user-facing category.
var (
	// ErrInvalidState is returned when a text or audio input arrives in a
	// step that does not accept it.
	ErrInvalidState = errors.New("input not valid for current session step")

	// ErrPreconditionFailed is returned when an audio submission arrives
	// before all identity fields were collected. The caller should ask the
	// user to restart.
	ErrPreconditionFailed = errors.New("session is missing required details")

	// ErrPipelineBusy is returned when a session already has a submission in
	// flight. The session stays in its current step.
	ErrPipelineBusy = errors.New("a submission is already being processed for this session")
)

type TranscodeError struct {
	Path string
	Err  error
}

func (e *TranscodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcode %s: no output produced", e.Path)
	}
	return fmt.Sprintf("transcode %s: %v", e.Path, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract features from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render report %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type ArtifactIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArtifactIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArtifactIOError) Unwrap() error { return e.Err }

// FailureCategory maps an error to the short human-readable category the
// transport layer relays to the user.
func FailureCategory(err error) string {
	var (
		transcodeErr  *TranscodeError
		extractionErr *ExtractionError
		renderErr     *RenderError
		artifactErr   *ArtifactIOError
	)

	switch {
	case errors.Is(err, ErrInvalidState):
		return "invalid request for the current step"
	case errors.Is(err, ErrPreconditionFailed):
		return "missing details, please restart"
	case errors.Is(err, ErrPipelineBusy):
		return "previous submission still processing"
	case errors.As(err, &transcodeErr):
		return "audio conversion failed"
	case errors.As(err, &extractionErr):
		return "audio analysis failed"
	case errors.As(err, &renderErr):
		return "report generation failed"
	case errors.As(err, &artifactErr):
		return "file handling failed"
	default:
		return "processing failed"
	}
}
