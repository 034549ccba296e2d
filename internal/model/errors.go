package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNicheNotFound      = errors.New("niche not found")
	ErrProductionNotFound = errors.New("production not found")
	ErrManifestMissing    = errors.New("render manifest missing")

	ErrQuotaExceeded    = errors.New("daily generation quota exceeded")
	ErrGenerationFailed = errors.New("generation failed")
	ErrSynthesisFailed  = errors.New("synthesis failed")
	ErrManifestFailed   = errors.New("manifest preparation failed")
	ErrRenderFailed     = errors.New("render failed")
)

// GenerationError carries how many attempts were made before giving up.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

const (
	StageGeneration = "generation"
	StageManifest   = "manifest"
	StageEnqueue    = "enqueue"
)

// StageError tags a trigger failure with the pipeline stage it came from.
// ProductionID is zero when the failure happened before a record existed.
type StageError struct {
	Stage        string
	ProductionID int64
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
