// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	_ "embed"
	"io"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

//go:embed config.yaml
var configYAML []byte

// Option represents a single charm config option.
type Option struct {
	Type        string
	Description string
	Default     interface{}
}

// Config represents the supported configuration options for a charm,
// as declared in its config.yaml file.
type Config struct {
	Options map[string]Option
}

// DefaultSettings returns the default value of every option that
// declares one.
func (c *Config) DefaultSettings() map[string]interface{} {
	out := make(map[string]interface{})
	for name, opt := range c.Options {
		if opt.Default != nil {
			out[name] = opt.Default
		}
	}
	return out
}

// ConfigOptions returns the config embedded in this charm binary.
func ConfigOptions() (*Config, error) {
	return parseConfig(configYAML)
}

// ReadConfig reads a Config in YAML format.
func ReadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "config")
	}
	v, err := configSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	config := &Config{Options: make(map[string]Option)}
	options := v.(map[string]interface{})["options"].(map[interface{}]interface{})
	for name, raw := range options {
		optMap := raw.(map[string]interface{})
		opt := Option{
			Type: optMap["type"].(string),
		}
		if desc, ok := optMap["description"].(string); ok {
			opt.Description = desc
		}
		if def, ok := optMap["default"]; ok && def != nil {
			checker, ok := optionTypeCheckers[opt.Type]
			if !ok {
				return nil, errors.NotValidf("option %q type %q", name, opt.Type)
			}
			coerced, err := checker.Coerce(def, []string{name.(string)})
			if err != nil {
				return nil, errors.Annotatef(err, "invalid default for option %q", name)
			}
			opt.Default = coerced
		}
		config.Options[name.(string)] = opt
	}
	return config, nil
}

var optionTypeCheckers = map[string]schema.Checker{
	"string":  schema.String(),
	"int":     schema.ForceInt(),
	"float":   schema.Float(),
	"boolean": schema.Bool(),
}

var optionSchema = schema.FieldMap(
	schema.Fields{
		"type":        schema.OneOf(schema.Const("string"), schema.Const("int"), schema.Const("float"), schema.Const("boolean")),
		"default":     schema.Any(),
		"description": schema.String(),
	},
	schema.Defaults{
		"default":     schema.Omit,
		"description": schema.Omit,
	},
)

var configSchema = schema.FieldMap(
	schema.Fields{
		"options": schema.Map(schema.String(), optionSchema),
	},
	nil,
)
