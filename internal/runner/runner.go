// Package runner abstracts external process invocation so the
// configuration step can be exercised with a fake in tests.
package runner

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
)

// Runner executes an external program and reports its exit code. A
// non-nil error means the program could not be run at all; a non-zero
// exit code is not an error at this layer.
type Runner interface {
	Run(ctx context.Context, path string, args []string, workDir string) (int, error)
}

// ExecRunner runs programs via os/exec, inheriting this process's
// stdout and stderr so the child's output lands in the provisioning log.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, path string, args []string, workDir string) (int, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Printf("[runner] Executing %s (workdir %s)", path, workDir)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
