// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"runtime"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo/v2"

	"github.com/juju/documize-charm/internal/commands"
)

var logger = loggo.GetLogger("documize.cmd")

const (
	// exitErr is returned when the command could not be started.
	exitErr = 2
	// exitPanic is returned when we exit due to an unhandled panic.
	exitPanic = 3
)

func main() {
	os.Exit(Main(os.Args))
}

// Main is not redundant with main(), because it provides an entry point
// for testing with arbitrary command line arguments.
func Main(args []string) int {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Criticalf("Unhandled panic: \n%v\n%s", r, buf)
			os.Exit(exitPanic)
		}
	}()

	ctx, err := cmd.DefaultContext()
	if err != nil {
		cmd.WriteError(os.Stderr, err)
		return exitErr
	}
	return cmd.Main(commands.NewSuperCommand(commands.DefaultConfig()), ctx, args[1:])
}
