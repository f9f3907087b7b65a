package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/ctxutil"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

const (
	batchFlag  = "-b"
	scriptFlag = "-P"
	argsSep    = "--"
)

var errRunnerTimeout = errors.New("render timeout elapsed")

// Runner invokes the render tool once per call. It never retries: a failed
// render is terminal for the invocation.
type Runner struct {
	log     *logger.Logger
	timeout time.Duration
}

// NewRunner returns a runner bounded by timeout. A zero timeout leaves the
// caller's deadline as the only bound.
func NewRunner(log *logger.Logger, timeout time.Duration) *Runner {
	return &Runner{
		log:     log.With("service", "RenderRunner"),
		timeout: timeout,
	}
}

// Args builds the argument list after the executable. The order is the
// integration contract with the render script.
func Args(script, input, output string) []string {
	return []string{batchFlag, scriptFlag, script, argsSep, input, output}
}

func (r *Runner) Run(ctx context.Context, executable, script, input, output string) (*pipeline.RenderResult, error) {
	ctx = ctxutil.Default(ctx)
	if executable == "" {
		return nil, &pipeline.RendererNotFoundError{Missing: "executable"}
	}
	var err error
	if input, err = filepath.Abs(input); err != nil {
		return nil, fmt.Errorf("absolute input path: %w", err)
	}
	if output, err = filepath.Abs(output); err != nil {
		return nil, fmt.Errorf("absolute output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output dir: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.timeout, errRunnerTimeout)
		defer cancel()
	}

	args := Args(script, input, output)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = filepath.Dir(output)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second
	configureProcess(cmd)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	res := &pipeline.RenderResult{
		Executable: executable,
		Args:       args,
		ExitCode:   exitCode(cmd, runErr),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		OutputPath: output,
	}

	if ctxErr := ctx.Err(); runErr != nil && ctxErr != nil {
		r.log.Warn("Render cancelled", "executable", executable, "elapsed_ms", elapsed.Milliseconds(), "error", ctxErr)
		// Only the runner's own timer reports a timeout; an earlier caller
		// deadline or cancellation reads as a cancellation.
		timeout := time.Duration(0)
		if errors.Is(context.Cause(ctx), errRunnerTimeout) {
			timeout = r.timeout
		}
		return res, &pipeline.RenderTimeoutError{Timeout: timeout, Stderr: res.Stderr, Err: ctxErr}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			r.log.Error("Render failed", "exit_code", res.ExitCode, "elapsed_ms", elapsed.Milliseconds(), "stderr", tail(res.Stderr, 2048))
			return res, &pipeline.RenderProcessError{ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		if errors.Is(runErr, os.ErrNotExist) {
			return res, &pipeline.RendererNotFoundError{Missing: "executable", Searched: []string{executable}}
		}
		return res, &pipeline.RenderProcessError{ExitCode: -1, Stderr: joinNonEmpty(res.Stderr, runErr.Error())}
	}

	info, statErr := os.Stat(output)
	if statErr != nil || info.IsDir() || info.Size() == 0 {
		r.log.Error("Render produced no artifact", "output", output, "elapsed_ms", elapsed.Milliseconds(), "stdout", tail(res.Stdout, 2048))
		return res, &pipeline.RenderOutputMissingError{OutputPath: output, Stdout: res.Stdout}
	}
	res.OutputSize = info.Size()

	r.log.Info("Render complete", "output", output, "bytes", res.OutputSize, "elapsed_ms", elapsed.Milliseconds())
	return res, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
