// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package command runs external programs and captures their merged output.
//
// A non-zero exit status is not an error here: status tools such as
// systemctl or ping report meaningful negative results through their exit
// code, so callers receive the output together with the code and decide for
// themselves. Only a program that cannot be started at all yields an error,
// and that error always wraps ErrUnavailable.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// ErrUnavailable is returned when an executable cannot be found or launched.
var ErrUnavailable = errors.New("command unavailable")

// Result is the outcome of one finished process.
type Result struct {
	// Output holds stdout and stderr merged in write order.
	Output string
	// ExitCode is the process exit status, or -1 when it was killed by a signal.
	ExitCode int
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Lines returns the output with trailing whitespace removed, split into lines.
// An empty output yields no lines.
func (r Result) Lines() []string {
	trimmed := strings.TrimRight(r.Output, " \t\r\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// Runner launches a program synchronously and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner is the Runner backed by os/exec.
type ExecRunner struct {
	logger logr.Logger
	env    []string
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithEnv sets extra environment variables (KEY=value) for every child
// process, appended to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *ExecRunner) {
		r.env = append(r.env, env...)
	}
}

// NewExecRunner creates a Runner that starts real processes.
func NewExecRunner(logger logr.Logger, opts ...Option) *ExecRunner {
	r := &ExecRunner{logger: logger.WithName("command")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts name with args, waits for it and returns its merged output.
//
// The context bounds the process lifetime; a process killed because the
// context expired is reported like any other signal death, with ExitCode -1.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		r.logger.V(2).Info("command finished", "name", name, "args", args, "duration", elapsed)
		return Result{Output: out.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logger.V(2).Info("command exited with non-zero status",
			"name", name, "args", args, "exitCode", exitErr.ExitCode(), "duration", elapsed)
		return Result{Output: out.String(), ExitCode: exitErr.ExitCode()}, nil
	}

	r.logger.V(1).Info("command could not be started", "name", name, "error", err.Error())
	return Result{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
}
