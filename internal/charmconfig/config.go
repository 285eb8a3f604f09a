// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmconfig validates the charm's config settings and detects
// changes between hooks.
package charmconfig

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"

	"github.com/juju/documize-charm/charm"
)

const (
	// PortKey is the port nginx serves Documize on.
	PortKey = "port"

	// FQDNKey is the site name, also used as the certificate common name.
	FQDNKey = "fqdn"
)

var configSchema = environschema.Fields{
	PortKey: {
		Description: "Port nginx listens on for Documize.",
		Type:        environschema.Tint,
	},
	FQDNKey: {
		Description: "Fully qualified domain name of the site.",
		Type:        environschema.Tstring,
	},
}

var configFields = func() schema.Fields {
	fs, _, err := configSchema.ValidationSchema()
	if err != nil {
		panic(err)
	}
	return fs
}()

// Schema returns the config schema.
func Schema() environschema.Fields {
	return configSchema
}

// Defaults returns the defaults declared in the charm's config.yaml.
func Defaults() (schema.Defaults, error) {
	options, err := charm.ConfigOptions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defaults := make(schema.Defaults)
	for name := range configSchema {
		if def, ok := options.DefaultSettings()[name]; ok {
			defaults[name] = def
		} else {
			defaults[name] = schema.Omit
		}
	}
	return defaults, nil
}

// Config is a validated set of charm config settings.
type Config struct {
	attrs map[string]interface{}
}

// New validates attrs against the config schema, filling in defaults.
// Unknown keys are ignored.
func New(attrs map[string]interface{}, defaults schema.Defaults) (*Config, error) {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	checker := schema.FieldMap(configFields, defaults)
	v, err := checker.Coerce(attrs, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "charm config")
	}
	return &Config{attrs: v.(map[string]interface{})}, nil
}

// Attributes returns a copy of the validated settings.
func (c *Config) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(c.attrs))
	for k, v := range c.attrs {
		out[k] = v
	}
	return out
}

// Port returns the configured listen port.
func (c *Config) Port() int {
	switch v := c.attrs[PortKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// FQDN returns the configured site name, which may be empty.
func (c *Config) FQDN() string {
	v, _ := c.attrs[FQDNKey].(string)
	return v
}

// Validate checks the settings make sense together.
func (c *Config) Validate() error {
	if port := c.Port(); port < 1 || port > 65535 {
		return errors.NotValidf("port %d", port)
	}
	return nil
}

// Snapshot renders the settings in a form that survives a JSON round
// trip unchanged, for comparison with later hooks.
func (c *Config) Snapshot() map[string]string {
	out := make(map[string]string, len(c.attrs))
	for k, v := range c.attrs {
		out[k] = fmt.Sprint(v)
	}
	return out
}
