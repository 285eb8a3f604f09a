// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package http implements the providing side of the http interface.
package http

import (
	"context"
	"strconv"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation"
)

// Interface is the relation interface name in metadata.yaml.
const Interface = "http"

// AvailableFlag is set while the website endpoint is related.
const AvailableFlag = "website.available"

// Endpoint is the website endpoint.
type Endpoint struct {
	*relation.Endpoint
}

// NewEndpoint returns a website endpoint.
func NewEndpoint(name, localUnit string, tools relation.Tools) *Endpoint {
	return &Endpoint{Endpoint: relation.NewEndpoint(name, localUnit, tools)}
}

// Refresh implements reactive.Provider.
func (e *Endpoint) Refresh(ctx context.Context, st *reactive.State) error {
	if err := e.Endpoint.Refresh(ctx); err != nil {
		return errors.Trace(err)
	}
	st.Toggle(AvailableFlag, e.Joined())
	return nil
}

// Configure publishes the address the site is served on.
func (e *Endpoint) Configure(ctx context.Context, hostname string, port int) error {
	err := e.Publish(ctx, map[string]string{
		"hostname": hostname,
		"port":     strconv.Itoa(port),
	})
	return errors.Annotate(err, "publishing website")
}
