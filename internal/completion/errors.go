package completion

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotSaved  = errors.New("completion record not saved")
	ErrJobNotAdvanced  = errors.New("completion saved but job status not updated")
	ErrSessionNotFound = errors.New("completion session not found")
	ErrNoCompletion    = errors.New("job has no saved completion")
)

type Stage string

const (
	StageMedia     Stage = "media"
	StageSignature Stage = "signature"
	StageRecord    Stage = "record"
	StageJob       Stage = "job"
)

// Error reports where a completion stopped. Only StageJob leaves a saved
// record behind; every earlier stage leaves the job untouched.
type Error struct {
	Stage Stage
	Err   error
	// SignatureURL is a signature uploaded before the failure, reused by the
	// next attempt.
	SignatureURL string
}

func (e *Error) Error() string {
	switch e.Stage {
	case StageRecord:
		return fmt.Sprintf("%v: %v", ErrRecordNotSaved, e.Err)
	case StageJob:
		return fmt.Sprintf("%v: %v", ErrJobNotAdvanced, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrRecordNotSaved:
		return e.Stage == StageRecord
	case ErrJobNotAdvanced:
		return e.Stage == StageJob
	}
	return false
}

// Partial reports whether the record was saved but the job was not advanced.
func (e *Error) Partial() bool { return e.Stage == StageJob }
