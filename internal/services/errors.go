package services

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Handlers map these onto HTTP responses; the
// orchestrator wraps them with the stage that produced them.
var (
	ErrInvalidURL          = errors.New("invalid YouTube URL")
	ErrNoStreamAvailable   = errors.New("no audio stream available")
	ErrDownloadFailed      = errors.New("download failed")
	ErrTranscodeFailed     = errors.New("transcode failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrNotFound            = errors.New("not found")
)

// Pipeline stages, reported on failure so callers can decide whether a
// resubmit is worth trying.
const (
	StageResolve    = "resolve"
	StageAcquire    = "acquire"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageTranslate  = "translate"
	StageStore      = "store"
)

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the stage from a pipeline error, or "" when the error
// did not come out of a pipeline run.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
