// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mysql implements the requiring side of the mysql-shared
// interface.
package mysql

import (
	"context"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation"
)

// Interface is the relation interface name in metadata.yaml.
const Interface = "mysql-shared"

const (
	// ConnectedFlag is set while the database relation has remote units.
	ConnectedFlag = "database.connected"

	// AvailableFlag is set once credentials for this unit are published.
	AvailableFlag = "database.available"
)

// credentials is what the database publishes for a prefix. Prefixed
// keys are read without their "<prefix>_" part.
type credentials struct {
	DBHost       string `relation:"db_host"`
	Password     string `relation:"password"`
	AllowedUnits string `relation:"allowed_units"`
}

func (c credentials) allows(unit string) bool {
	if c.AllowedUnits == "" {
		return true
	}
	return set.NewStrings(strings.Fields(c.AllowedUnits)...).Contains(unit)
}

// Endpoint is the database endpoint.
type Endpoint struct {
	*relation.Endpoint
	prefix string
	remote credentials
}

// NewEndpoint returns an endpoint that considers the database available
// once credentials for prefix are published.
func NewEndpoint(name, localUnit, prefix string, tools relation.Tools) *Endpoint {
	return &Endpoint{
		Endpoint: relation.NewEndpoint(name, localUnit, tools),
		prefix:   prefix,
	}
}

// Refresh implements reactive.Provider.
func (e *Endpoint) Refresh(ctx context.Context, st *reactive.State) error {
	if err := e.Endpoint.Refresh(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := e.decode(); err != nil {
		return errors.Trace(err)
	}
	st.Toggle(ConnectedFlag, e.HasUnits())
	st.Toggle(AvailableFlag, e.available())
	return nil
}

// decode reads the credentials from the first remote unit that
// publishes a database host.
func (e *Endpoint) decode() error {
	e.remote = credentials{}
	for _, rel := range e.Relations() {
		for _, unit := range rel.Units {
			settings := relation.Scoped(unit.Settings, e.prefix+"_")
			settings["db_host"] = unit.Settings["db_host"]
			var creds credentials
			if err := relation.Decode(settings, &creds); err != nil {
				return errors.Annotatef(err, "reading credentials from %s", unit.Name)
			}
			if creds.DBHost != "" {
				e.remote = creds
				return nil
			}
		}
	}
	return nil
}

func (e *Endpoint) available() bool {
	if !e.HasUnits() || e.remote.DBHost == "" || e.remote.Password == "" {
		return false
	}
	return e.remote.allows(e.LocalUnit())
}

// Configure requests a database and user for this unit.
func (e *Endpoint) Configure(ctx context.Context, database, user, hostname, prefix string) error {
	if e.prefix != "" && prefix != e.prefix {
		return errors.NotValidf("prefix %q for endpoint expecting %q", prefix, e.prefix)
	}
	err := e.Publish(ctx, map[string]string{
		prefix + "_database": database,
		prefix + "_username": user,
		prefix + "_hostname": hostname,
	})
	return errors.Annotate(err, "requesting database")
}

// DBHost returns the database server address.
func (e *Endpoint) DBHost() string {
	return e.remote.DBHost
}

// Username returns the user requested for prefix.
func (e *Endpoint) Username(prefix string) string {
	return e.Local(prefix + "_username")
}

// Database returns the database requested for prefix.
func (e *Endpoint) Database(prefix string) string {
	return e.Local(prefix + "_database")
}

// Password returns the password published for prefix.
func (e *Endpoint) Password(prefix string) string {
	if prefix != e.prefix {
		return e.Remote(prefix + "_password")
	}
	return e.remote.Password
}
