package internal

import (
	"errors"
	"fmt"
)

// Stage names a step of the ingest or query flow.
type Stage string

const (
	StageReceived  Stage = "received"
	StageGuardrail Stage = "guardrail"
	StageEmbedded  Stage = "embedded"
	StageStored    Stage = "stored"
	StageRetrieved Stage = "retrieved"
	StageAssembled Stage = "assembled"
	StageGenerated Stage = "generated"
	StageSanitized Stage = "sanitized"
)

// StageError reports the stage that failed together with the cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsInputError reports whether err was caused by the caller's input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrInvalidID)
}
