package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the process
// was killed by a deadline.
const waitDelay = 5 * time.Second

// Run executes cmd to completion, capturing stdout and stderr separately.
// A non-zero exit is reported through ProcessResult.ExitCode, not as an
// error; err is only returned when the process could not be run at all.
func Run(ctx context.Context, cmd *exec.Cmd) (domain.ProcessResult, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res := domain.ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}

	if err != nil {
		// ambil exit code
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		if res.TimedOut {
			res.ExitCode = -1
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", cmd.Path, err)
	}
	return res, nil
}
