// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/documize-charm/internal/documize"
	"github.com/juju/documize-charm/internal/logging"
	"github.com/juju/documize-charm/internal/reactive"
)

const dispatchDoc = `
Runs the charm's handlers to a fixed point for the current hook and
records the resulting flags. The hook name is taken from
JUJU_DISPATCH_PATH unless --hook is given.

Examples:
    documize-charm dispatch --variant tls
    documize-charm dispatch --hook update-status
`

type dispatchCommand struct {
	unitCommand

	variantName string
	variant     documize.Variant
	hook        string
	logLevel    string
}

func newDispatchCommand(config Config) cmd.Command {
	return &dispatchCommand{unitCommand: unitCommand{config: config}}
}

// Info implements cmd.Command.
func (c *dispatchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "dispatch",
		Purpose: "run the handlers for the current hook",
		Doc:     dispatchDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *dispatchCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.variantName, "variant", string(documize.Plain), "how the site is served: plain, tls or tls-consolidated")
	f.StringVar(&c.hook, "hook", "", "hook name, overriding JUJU_DISPATCH_PATH")
	f.StringVar(&c.logLevel, "log-level", "<root>=INFO", "loggo logging configuration")
}

// Init implements cmd.Command.
func (c *dispatchCommand) Init(args []string) error {
	variant, err := documize.ParseVariant(c.variantName)
	if err != nil {
		return errors.Trace(err)
	}
	c.variant = variant
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *dispatchCommand) Run(ctx *cmd.Context) error {
	env, err := c.environ()
	if err != nil {
		return errors.Trace(err)
	}
	hook := c.hook
	if hook == "" {
		hook = env.HookName
	}
	if hook == "" {
		return errors.New("hook name not known: set JUJU_DISPATCH_PATH or --hook")
	}
	err = logging.Setup(logging.Config{
		Level:   c.logLevel,
		JujuLog: c.config.JujuLog,
		LogFile: c.config.LogFile,
	})
	if err != nil {
		return errors.Trace(err)
	}

	charm, err := c.config.NewCharm(c.variant, env)
	if err != nil {
		return errors.Trace(err)
	}
	store, err := openStore(env)
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()

	dispatcherConfig := charm.DispatcherConfig(store)
	dispatcherConfig.LockName = reactive.LockName(env.UnitName)
	dispatcherConfig.Clock = c.config.Clock
	dispatcher, err := reactive.NewDispatcher(dispatcherConfig)
	if err != nil {
		return errors.Trace(err)
	}

	stdCtx, stop := interruptible()
	defer stop()
	result, err := dispatcher.Dispatch(stdCtx, hook)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("%s: fired %v in %d passes", hook, result.Fired, result.Passes)
	ctx.Verbosef("flags: %v", result.Flags.SortedValues())
	return nil
}
