package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// LifecycleRunner drives the per-configuration lifecycle (cluster/container
// setup, benchmark execution, teardown) for one handoff file. It blocks until
// the run finishes, feeding combined output to onLine one line at a time, and
// returns the exit code.
type LifecycleRunner interface {
	Invoke(ctx context.Context, handoffPath string, onLine func(string)) (int, error)
}

// ScriptRunner invokes the external lifecycle shell script:
// `bash <script> <handoff>`. With UsePTY the child runs under a pseudo
// terminal so its children line-buffer their output instead of block
// buffering it, which keeps the live log readable.
type ScriptRunner struct {
	ScriptPath string
	UsePTY     bool
	Logger     *slog.Logger
}

func NewScriptRunner(scriptPath string, logger *slog.Logger) *ScriptRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptRunner{ScriptPath: scriptPath, Logger: logger}
}

func (r *ScriptRunner) Invoke(ctx context.Context, handoffPath string, onLine func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, "bash", r.ScriptPath, handoffPath)

	var out io.ReadCloser
	if r.UsePTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return -1, fmt.Errorf("starting lifecycle script under pty: %w", err)
		}
		out = ptmx
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return -1, fmt.Errorf("preparing lifecycle script output: %w", err)
		}
		cmd.Stderr = cmd.Stdout
		out = pipe
		if err := cmd.Start(); err != nil {
			return -1, fmt.Errorf("starting lifecycle script: %w", err)
		}
	}

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	readErr := scanner.Err()
	// A pty returns EIO once the child exits; that is normal EOF, not failure.
	if r.UsePTY && errors.Is(readErr, syscall.EIO) {
		readErr = nil
	}
	if readErr != nil {
		// The child may be blocked writing the rest of an over-long line;
		// drain it so Wait can return instead of hanging on a full pipe.
		r.Logger.Warn("reading lifecycle script output", "error", readErr)
		io.Copy(io.Discard, out)
	}
	if r.UsePTY {
		out.Close()
	}

	waitErr := cmd.Wait()
	if readErr != nil {
		return -1, fmt.Errorf("reading lifecycle script output: %w", readErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("waiting for lifecycle script: %w", waitErr)
	}
	return 0, nil
}
