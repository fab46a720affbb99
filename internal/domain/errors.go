package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRenderFailure is matched by every error the rendering pipeline returns.
	ErrRenderFailure = errors.New("failed to generate PDF")
	// ErrHTMLRequired signals a conversion request without HTML content.
	ErrHTMLRequired = errors.New("html is required")
)

// Stage names the pipeline step a render failed in.
type Stage string

const (
	StageCapacity Stage = "capacity"
	StageLaunch   Stage = "launch"
	StageInject   Stage = "inject"
	StageExport   Stage = "export"
)

// RenderError is the single RenderFailure kind. Stage and Timeout exist so
// callers can report a structured code; they do not change handling.
type RenderError struct {
	Stage   Stage
	Timeout bool
	Err     error
}

func (e *RenderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render timed out during %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("render failed during %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRenderFailure) true for every RenderError.
func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailure
}

// Code returns a stable machine-readable failure code.
func (e *RenderError) Code() string {
	if e.Timeout {
		return "render_timeout"
	}
	return string(e.Stage) + "_failed"
}
