// Package runner executes local commands for the run_command surface. Every
// run has a hard deadline with kill-and-reap on expiry, and captured output
// is byte-bounded so a chatty command cannot flood an MCP response.
package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxOutputBytes = 64 * 1024

	// waitDelay closes the command's pipes and reaps the process if it
	// survives the kill signal, so a timed-out run never leaves a zombie.
	waitDelay = 5 * time.Second
)

// Spec describes one command invocation.
type Spec struct {
	Command        string
	Args           []string
	Dir            string
	Timeout        time.Duration
	MaxOutputBytes int
}

// Result reports a completed (or deadline-killed) run. A non-zero exit code
// is a result, not an error.
type Result struct {
	ExitCode  int     `json:"exit_code"`
	Stdout    string  `json:"stdout"`
	Stderr    string  `json:"stderr"`
	Duration  float64 `json:"duration"`
	TimedOut  bool    `json:"timed_out,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
}

// Run executes the spec. Errors are reserved for requests that never ran: an
// empty command or a process that could not start.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.NewInvalidRequest("command must not be empty")
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxOutput := spec.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputBytes
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = waitDelay

	stdout := &limitedBuffer{limit: maxOutput}
	stderr := &limitedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  round3(time.Since(started).Seconds()),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, errors.NewCommandFailed(spec.Command, err)
	}
	return result, nil
}

// limitedBuffer keeps the first limit bytes and swallows the rest, so the
// child process never blocks on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}
