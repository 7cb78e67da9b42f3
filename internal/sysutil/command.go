package sysutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrCommandFailed is returned when a command exits non-zero.
var ErrCommandFailed = errors.New("command failed")

// CommandResult captures a finished command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. Registrars depend on it so tests can
// substitute a recorder.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec, optionally through sudo.
type ExecRunner struct {
	Sudo bool
}

// Run executes name with args and waits for it. A non-zero exit yields
// ErrCommandFailed together with the captured output.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	if r.Sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			log.Warn().Str("cmd", line).Int("exit_code", res.ExitCode).Str("stderr", strings.TrimSpace(res.Stderr)).Msg("command exited non-zero")
			return res, fmt.Errorf("%w: %s: exit %d: %s", ErrCommandFailed, line, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", line, err)
	}
	log.Debug().Str("cmd", line).Msg("command ok")
	return res, nil
}
