// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package commands implements the documize-charm command line: the
// dispatch entry point juju runs for every hook, and the operator
// subcommands for inspecting and nudging the unit's flags.
package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v3"

	"github.com/juju/documize-charm/internal/documize"
	"github.com/juju/documize-charm/internal/flagstore"
	"github.com/juju/documize-charm/internal/hooktool"
	"github.com/juju/documize-charm/internal/logging"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/runner"
)

var logger = loggo.GetLogger("documize.commands")

const supercommandDoc = `
documize-charm runs the Documize charm. Juju invokes "documize-charm
dispatch" for every hook; the remaining subcommands let an operator
inspect and adjust the unit's flags from "juju exec".
`

// CharmFactory builds the charm for a unit.
type CharmFactory func(variant documize.Variant, env hooktool.Environment) (*documize.Charm, error)

// Config holds what the commands take from the process and the machine.
type Config struct {
	// Environ reads the hook context.
	Environ func() (hooktool.Environment, error)
	// NewCharm builds the charm dispatched by the dispatch command.
	NewCharm CharmFactory
	// JujuLog, when set, receives log output for the unit's debug-log.
	JujuLog logging.JujuLogger
	// LogFile, when set, receives a copy of the log output.
	LogFile string
	Clock   clock.Clock
}

// DefaultConfig returns the Config used by the documize-charm binary.
func DefaultConfig() Config {
	return Config{
		Environ:  hooktool.EnvironmentFromOS,
		NewCharm: NewCharm,
		JujuLog:  hooktool.New(runner.New(os.Environ())),
		LogFile:  logging.DefaultLogFile,
		Clock:    clock.WallClock,
	}
}

// NewCharm builds the charm against the real hook tools and machine.
func NewCharm(variant documize.Variant, env hooktool.Environment) (*documize.Charm, error) {
	r := runner.New(os.Environ())
	paths := documize.DefaultPaths(variant)
	charm, err := documize.New(documize.Config{
		Variant:    variant,
		Paths:      paths,
		UnitName:   env.UnitName,
		UnitKey:    env.PathSafeUnitName(),
		Tools:      hooktool.New(r),
		Runner:     r,
		Accounts:   documize.NewSystemAccounts(r),
		NewService: documize.SystemdServices(paths.SystemdDir),
	})
	return charm, errors.Trace(err)
}

// NewSuperCommand returns the documize-charm command with every
// subcommand registered.
func NewSuperCommand(config Config) *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "documize-charm",
		Purpose: "run and inspect the Documize charm",
		Doc:     supercommandDoc,
	})
	super.Register(newDispatchCommand(config))
	super.Register(newFlagsCommand(config))
	super.Register(newSetFlagCommand(config))
	super.Register(newClearFlagCommand(config))
	super.Register(newGraphCommand(config))
	return super
}

// unitCommand is embedded by the commands that work on the unit's
// flag store.
type unitCommand struct {
	cmd.CommandBase
	config Config
}

func (c *unitCommand) environ() (hooktool.Environment, error) {
	env, err := c.config.Environ()
	if err != nil {
		return env, errors.Trace(err)
	}
	if env.CharmDir == "" {
		return env, errors.NotFoundf("JUJU_CHARM_DIR")
	}
	return env, nil
}

func openStore(env hooktool.Environment) (*flagstore.Store, error) {
	store, err := flagstore.Open(filepath.Join(env.CharmDir, flagstore.DefaultFilename))
	return store, errors.Trace(err)
}

// withLockedStore runs f against the unit's store while holding the
// unit lock, so it never interleaves with a dispatch.
func (c *unitCommand) withLockedStore(ctx context.Context, f func(*flagstore.Store) error) error {
	env, err := c.environ()
	if err != nil {
		return errors.Trace(err)
	}
	release, err := reactive.Lock(ctx, reactive.LockName(env.UnitName), c.config.Clock)
	if err != nil {
		return errors.Trace(err)
	}
	defer release()
	store, err := openStore(env)
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()
	return errors.Trace(f(store))
}

// interruptible returns a context cancelled when the process is asked
// to stop.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// formatYAML writes value as a YAML document.
func formatYAML(w io.Writer, value interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(enc.Close())
}

var formatters = map[string]cmd.Formatter{
	"yaml": formatYAML,
	"json": cmd.FormatJson,
}
