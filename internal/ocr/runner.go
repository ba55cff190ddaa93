package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderr kept in logs per failed command
const maxLoggedStderr = 8 << 10

// Runner executes an external OCR tool. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

// Run executes name with args. Errors name the tool and tell a missing
// binary, a deadline and a non-zero exit apart.
func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	logger.Debug("ocr.exec.start", "cmd_line", strings.Join(append([]string{name}, args...), " "))

	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb
	runErr := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if runErr == nil {
		logger.Debug("ocr.exec.ok", "cmd", name, "elapsed_ms", elapsed, "stdout_bytes", out.Len())
		return out.Bytes(), errb.Bytes(), nil
	}

	var exitErr *exec.ExitError
	var err error
	switch {
	case errors.Is(runErr, exec.ErrNotFound):
		err = fmt.Errorf("%s not installed: %w", name, runErr)
	case ctx.Err() != nil:
		err = fmt.Errorf("%s stopped after %dms: %w", name, elapsed, ctx.Err())
	case errors.As(runErr, &exitErr):
		err = fmt.Errorf("%s exited with code %d: %w", name, exitErr.ExitCode(), runErr)
	default:
		err = fmt.Errorf("%s: %w", name, runErr)
	}
	logger.Error("ocr.exec.failed",
		"cmd", name,
		"elapsed_ms", elapsed,
		"err", err,
		"stderr", truncate(errb.String(), maxLoggedStderr),
	)
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
