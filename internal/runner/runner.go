// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runner executes external commands (juju hook tools, apt-get,
// adduser) on the unit's machine.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("documize.runner")

// Runner runs a command with arguments and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandRunner allows to run commands on the underlying system.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, msg)
}

// ShellRunner runs commands through the shell with their arguments
// quoted.
type ShellRunner struct {
	commands    CommandRunner
	environment []string
}

// New returns a Runner executing commands on the local machine with the
// given extra environment. A nil environment inherits the process
// environment.
func New(environment []string) *ShellRunner {
	return NewWithCommandRunner(defaultRunner{}, environment)
}

// NewWithCommandRunner returns a ShellRunner backed by the supplied
// CommandRunner.
func NewWithCommandRunner(commands CommandRunner, environment []string) *ShellRunner {
	return &ShellRunner{
		commands:    commands,
		environment: environment,
	}
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	line := shellquote.Join(append([]string{name}, args...)...)
	logger.Tracef("running %s", line)
	result, err := r.commands.RunCommands(exec.RunParams{
		Commands:    line,
		Environment: r.environment,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "running %s", name)
	}
	if result.Code != 0 {
		return result.Stdout, &ExitError{
			Command: name,
			Code:    result.Code,
			Stderr:  string(result.Stderr),
		}
	}
	return result.Stdout, nil
}
