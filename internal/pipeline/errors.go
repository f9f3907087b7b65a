package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes, one per failure class. They double as the HTTP error code and
// the outcome recorded on asset runs.
const (
	CodeNotFound            = "product_not_found"
	CodeMissingInput        = "missing_image_source"
	CodeAcquisition         = "image_acquisition_failed"
	CodeInvalidImage        = "invalid_image"
	CodeRendererNotFound    = "renderer_not_found"
	CodeRenderProcess       = "render_failed"
	CodeRenderOutputMissing = "render_output_missing"
	CodeRenderTimeout       = "render_timeout"
	CodeStore               = "asset_store_failed"
	CodeInternal            = "internal_error"
)

type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ProductID)
}

type MissingInputError struct {
	ProductID string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("product %q has no image source and no image was uploaded", e.ProductID)
}

type AcquisitionError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *AcquisitionError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("acquire image %s: unexpected status %d", e.Source, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("acquire image %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("acquire image %s", e.Source)
	}
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

type InvalidImageError struct {
	Err error
}

func (e *InvalidImageError) Error() string {
	if e.Err == nil {
		return "invalid image"
	}
	return fmt.Sprintf("invalid image: %v", e.Err)
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// RendererNotFoundError is a configuration error: either the executable or
// the pipeline script it must run could not be resolved.
type RendererNotFoundError struct {
	Platform string
	Missing  string // "executable" or "script"
	Searched []string
}

func (e *RendererNotFoundError) Error() string {
	if e.Missing == "script" {
		return fmt.Sprintf("render pipeline script not found (searched %s)", strings.Join(e.Searched, ", "))
	}
	return fmt.Sprintf("renderer executable not found for platform %s (searched %d candidates and PATH)", e.Platform, len(e.Searched))
}

type RenderProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *RenderProcessError) Error() string {
	msg := fmt.Sprintf("renderer exited with code %d", e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

type RenderOutputMissingError struct {
	OutputPath string
	Stdout     string
}

func (e *RenderOutputMissingError) Error() string {
	return fmt.Sprintf("renderer exited cleanly but produced no artifact at %s", e.OutputPath)
}

type RenderTimeoutError struct {
	Timeout time.Duration
	Stderr  string
	Err     error
}

func (e *RenderTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("renderer did not finish within %s", e.Timeout)
	}
	return "renderer cancelled before completion"
}

func (e *RenderTimeoutError) Unwrap() error { return e.Err }

type StoreError struct {
	Backend string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("persist %s via %s: %v", e.Key, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrorCode classifies err into one of the Code* constants.
func ErrorCode(err error) string {
	var (
		notFound   *NotFoundError
		missing    *MissingInputError
		acquire    *AcquisitionError
		invalid    *InvalidImageError
		noRenderer *RendererNotFoundError
		process    *RenderProcessError
		noOutput   *RenderOutputMissingError
		timeout    *RenderTimeoutError
		store      *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &missing):
		return CodeMissingInput
	case errors.As(err, &acquire):
		return CodeAcquisition
	case errors.As(err, &invalid):
		return CodeInvalidImage
	case errors.As(err, &noRenderer):
		return CodeRendererNotFound
	case errors.As(err, &process):
		return CodeRenderProcess
	case errors.As(err, &noOutput):
		return CodeRenderOutputMissing
	case errors.As(err, &timeout):
		return CodeRenderTimeout
	case errors.As(err, &store):
		return CodeStore
	default:
		return CodeInternal
	}
}

// Stderr returns the captured renderer stderr carried by err, if any.
func Stderr(err error) string {
	var process *RenderProcessError
	if errors.As(err, &process) {
		return process.Stderr
	}
	var timeout *RenderTimeoutError
	if errors.As(err, &timeout) {
		return timeout.Stderr
	}
	return ""
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
