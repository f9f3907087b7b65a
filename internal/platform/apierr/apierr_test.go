package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/artisan-backend/internal/pipeline"
)

func TestFromPipelineStatusTable(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&pipeline.NotFoundError{ProductID: "p"}, http.StatusNotFound, pipeline.CodeNotFound},
		{&pipeline.MissingInputError{ProductID: "p"}, http.StatusBadRequest, pipeline.CodeMissingInput},
		{&pipeline.AcquisitionError{Source: "u", StatusCode: 404}, http.StatusBadRequest, pipeline.CodeAcquisition},
		{&pipeline.InvalidImageError{Err: errors.New("x")}, http.StatusBadRequest, pipeline.CodeInvalidImage},
		{&pipeline.RendererNotFoundError{Platform: "linux"}, http.StatusInternalServerError, pipeline.CodeRendererNotFound},
		{&pipeline.RenderProcessError{ExitCode: 1, Stderr: "boom"}, http.StatusInternalServerError, pipeline.CodeRenderProcess},
		{&pipeline.RenderOutputMissingError{OutputPath: "/x"}, http.StatusInternalServerError, pipeline.CodeRenderOutputMissing},
		{&pipeline.RenderTimeoutError{Err: context.DeadlineExceeded}, http.StatusInternalServerError, pipeline.CodeRenderTimeout},
		{&pipeline.StoreError{Backend: "gcs", Err: errors.New("x")}, http.StatusInternalServerError, pipeline.CodeStore},
		{errors.New("db down"), http.StatusInternalServerError, pipeline.CodeInternal},
	}
	for _, tc := range cases {
		got := FromPipeline(fmt.Errorf("wrapped: %w", tc.err))
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("%T: want=%d/%q got=%d/%q", tc.err, tc.status, tc.code, got.Status, got.Code)
		}
	}
}

func TestFromPipelineKeepsStderrDetail(t *testing.T) {
	got := FromPipeline(&pipeline.RenderProcessError{ExitCode: 2, Stderr: "Traceback\nValueError: bad image"})
	if got.Detail != "Traceback\nValueError: bad image" {
		t.Fatalf("detail: got=%q", got.Detail)
	}
}

func TestFromPipelinePassesThroughAPIError(t *testing.T) {
	in := New(http.StatusConflict, "conflict", errors.New("dup"))
	if got := FromPipeline(in); got != in {
		t.Fatalf("FromPipeline: want passthrough")
	}
	if FromPipeline(nil) != nil {
		t.Fatalf("FromPipeline(nil): want nil")
	}
}
