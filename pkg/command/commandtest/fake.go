// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/antimetal/sysdiag/pkg/command"
)

// Response is the canned outcome for one command line.
type Response struct {
	Output      string
	ExitCode    int
	Unavailable bool
}

// FakeRunner answers Run calls from a table keyed by the full command line,
// e.g. "/usr/bin/free -b". Unknown command lines behave like a missing
// executable. It is safe for concurrent use.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []string
}

var _ command.Runner = (*FakeRunner)(nil)

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]Response)}
}

// Set registers the response for a command line.
func (f *FakeRunner) Set(cmdline string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = resp
	return f
}

// SetOutput registers a successful run printing output.
func (f *FakeRunner) SetOutput(cmdline, output string) *FakeRunner {
	return f.Set(cmdline, Response{Output: output})
}

// Run implements command.Runner.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	resp, ok := f.responses[cmdline]
	f.mu.Unlock()

	if !ok || resp.Unavailable {
		return command.Result{}, fmt.Errorf("%w: %s", command.ErrUnavailable, name)
	}
	return command.Result{Output: resp.Output, ExitCode: resp.ExitCode}, nil
}

// Calls returns the command lines run so far, in call order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
