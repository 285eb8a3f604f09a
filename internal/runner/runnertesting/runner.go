// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runnertesting provides a recording runner.Runner for tests.
package runnertesting

import (
	"context"
	"strings"
	"sync"

	"github.com/juju/testing"
)

// StubRunner records every command and returns canned output.
type StubRunner struct {
	*testing.Stub

	mu sync.Mutex
	// Outputs maps a command line, as rendered by Key, to its output.
	Outputs map[string]string
	// Handlers run in place of canned output for a command name.
	Handlers map[string]func(args []string) ([]byte, error)
}

// NewStubRunner returns an empty StubRunner.
func NewStubRunner() *StubRunner {
	return &StubRunner{
		Stub:     &testing.Stub{},
		Outputs:  make(map[string]string),
		Handlers: make(map[string]func([]string) ([]byte, error)),
	}
}

// Key renders a command line for use in Outputs.
func Key(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// Run implements runner.Runner.
func (r *StubRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.MethodCall(r, "Run", append([]string{name}, args...))
	err := r.NextErr()
	h, ok := r.Handlers[name]
	out := r.Outputs[Key(name, args...)]
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ok {
		return h(args)
	}
	return []byte(out), nil
}

// Commands returns every command line run so far.
func (r *StubRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, call := range r.Calls() {
		out = append(out, strings.Join(call.Args[0].([]string), " "))
	}
	return out
}

// CommandsNamed returns the command lines run for the named command.
func (r *StubRunner) CommandsNamed(name string) []string {
	var out []string
	for _, cmd := range r.Commands() {
		if cmd == name || strings.HasPrefix(cmd, name+" ") {
			out = append(out, cmd)
		}
	}
	return out
}
