package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindAnalysis     ErrorKind = "analysis"
	KindGeneration   ErrorKind = "generation"
	KindCanceled     ErrorKind = "canceled"
)

// PipelineError is a terminal stage failure with a user-facing reason.
type PipelineError struct {
	Kind   ErrorKind
	Stage  string
	Reason string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, e.Reason)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func InvalidInput(reason string) *PipelineError {
	return &PipelineError{Kind: KindInvalidInput, Stage: "init", Reason: reason}
}

func AnalysisFailure(reason string, err error) *PipelineError {
	return &PipelineError{Kind: KindAnalysis, Stage: "vision", Reason: reason, Err: err}
}

func GenerationFailure(reason string, err error) *PipelineError {
	return &PipelineError{Kind: KindGeneration, Stage: "coder", Reason: reason, Err: err}
}

func Canceled(stage string, err error) *PipelineError {
	return &PipelineError{Kind: KindCanceled, Stage: stage, Reason: "request canceled", Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
