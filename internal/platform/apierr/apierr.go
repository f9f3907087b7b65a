package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/artisan-backend/internal/pipeline"
)

// Error is the boundary error carried to HTTP responses. Detail holds
// operator-facing text (for example renderer stderr) and is returned in the
// error body alongside the message.
type Error struct {
	Status int
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func WithDetail(status int, code string, detail string, err error) *Error {
	return &Error{Status: status, Code: code, Detail: detail, Err: err}
}

// FromPipeline maps a pipeline failure to its boundary status and code.
// Renderer stderr is carried as Detail. Unknown errors become 500s.
func FromPipeline(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := pipeline.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case pipeline.CodeNotFound:
		status = http.StatusNotFound
	case pipeline.CodeMissingInput, pipeline.CodeAcquisition, pipeline.CodeInvalidImage:
		status = http.StatusBadRequest
	}
	return WithDetail(status, code, pipeline.Stderr(err), err)
}
