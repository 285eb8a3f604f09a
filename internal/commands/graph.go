// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package commands

import (
	"fmt"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/documize-charm/internal/documize"
	"github.com/juju/documize-charm/internal/hooktool"
	"github.com/juju/documize-charm/internal/reactive"
)

// graphUnit stands in for the unit when the graph is printed outside a
// hook context.
const graphUnit = "documize/0"

type graphCommand struct {
	cmd.CommandBase
	config Config

	variantName string
	variant     documize.Variant
}

func newGraphCommand(config Config) cmd.Command {
	return &graphCommand{config: config}
}

// Info implements cmd.Command.
func (c *graphCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "graph",
		Purpose: "print the handler graph",
		Doc: `
Prints the handlers for a variant with the flags linking them, and fails
if the graph is not valid.

Examples:
    documize-charm graph --variant tls
`,
	}
}

// SetFlags implements cmd.Command.
func (c *graphCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.variantName, "variant", string(documize.Plain), "variant to print")
}

// Init implements cmd.Command.
func (c *graphCommand) Init(args []string) error {
	variant, err := documize.ParseVariant(c.variantName)
	if err != nil {
		return errors.Trace(err)
	}
	c.variant = variant
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *graphCommand) Run(ctx *cmd.Context) error {
	charm, err := c.config.NewCharm(c.variant, hooktool.Environment{UnitName: graphUnit})
	if err != nil {
		return errors.Trace(err)
	}
	graph := reactive.NewGraph(charm.Handlers())
	fmt.Fprint(ctx.Stdout, graph.String())
	return errors.Trace(graph.Validate())
}
