// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"strings"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/documize-charm/internal/documize"
	"github.com/juju/documize-charm/internal/flagstore"
)

// flagsOutput is what the flags command prints.
type flagsOutput struct {
	Revision int64    `yaml:"revision" json:"revision"`
	Flags    []string `yaml:"flags" json:"flags"`
}

type flagsCommand struct {
	unitCommand
	out cmd.Output
}

func newFlagsCommand(config Config) cmd.Command {
	return &flagsCommand{unitCommand: unitCommand{config: config}}
}

// Info implements cmd.Command.
func (c *flagsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "flags",
		Purpose: "list the unit's persisted flags",
		Doc: `
Lists the flags recorded at the end of the last successful dispatch,
with the store revision, which grows with every flag set or cleared.

Examples:
    documize-charm flags
    documize-charm flags --format json
`,
	}
}

// SetFlags implements cmd.Command.
func (c *flagsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "yaml", formatters)
}

// Init implements cmd.Command.
func (c *flagsCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *flagsCommand) Run(ctx *cmd.Context) error {
	stdCtx, stop := interruptible()
	defer stop()
	out := flagsOutput{Flags: []string{}}
	err := c.withLockedStore(stdCtx, func(store *flagstore.Store) error {
		current, err := store.Flags(stdCtx)
		if err != nil {
			return errors.Trace(err)
		}
		if !current.IsEmpty() {
			out.Flags = current.SortedValues()
		}
		out.Revision, err = store.Revision(stdCtx)
		return errors.Trace(err)
	})
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, out)
}

func checkFlagNames(names []string) error {
	if len(names) == 0 {
		return errors.New("no flag names specified")
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.NotValidf("empty flag name")
		}
		if documize.Triggers().Match(name) {
			return errors.NotValidf("transient flag %q", name)
		}
	}
	return nil
}

type setFlagCommand struct {
	unitCommand
	names []string
	clear bool
}

func newSetFlagCommand(config Config) cmd.Command {
	return &setFlagCommand{unitCommand: unitCommand{config: config}}
}

func newClearFlagCommand(config Config) cmd.Command {
	return &setFlagCommand{unitCommand: unitCommand{config: config}, clear: true}
}

// Info implements cmd.Command.
func (c *setFlagCommand) Info() *cmd.Info {
	if c.clear {
		return &cmd.Info{
			Name:    "clear-flag",
			Args:    "<flag> ...",
			Purpose: "clear flags so the handlers that set them run again",
			Doc: `
Clears the named flags. The handlers they gate run again on the next hook,
for example after fixing the problem that made a hook fail.

Examples:
    documize-charm clear-flag documize.web.available
`,
		}
	}
	return &cmd.Info{
		Name:    "set-flag",
		Args:    "<flag> ...",
		Purpose: "set flags on the unit",
		Doc: `
Sets the named flags. Flags that only live for a single hook, such as
hook, config change and certificate change triggers, cannot be set.

Examples:
    documize-charm set-flag documize.db.created
`,
	}
}

// Init implements cmd.Command.
func (c *setFlagCommand) Init(args []string) error {
	if err := checkFlagNames(args); err != nil {
		return errors.Trace(err)
	}
	c.names = args
	return nil
}

// Run implements cmd.Command.
func (c *setFlagCommand) Run(ctx *cmd.Context) error {
	stdCtx, stop := interruptible()
	defer stop()
	return c.withLockedStore(stdCtx, func(store *flagstore.Store) error {
		return store.Update(stdCtx, func(txn *flagstore.Txn) error {
			for _, name := range c.names {
				if c.clear {
					txn.Clear(name)
				} else {
					txn.Set(name)
				}
			}
			return nil
		})
	})
}
