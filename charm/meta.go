// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm holds the charm's metadata.yaml and config.yaml and
// parses them into their Go representation.
package charm

import (
	_ "embed"
	"io"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

//go:embed metadata.yaml
var metadataYAML []byte

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Name      string
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Resource describes a resource the charm expects to be attached.
type Resource struct {
	Name        string
	Type        string
	Filename    string
	Description string
}

// Meta represents all the known content that may be defined
// within a charm's metadata.yaml file.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Series      []string
	Provides    map[string]Relation
	Requires    map[string]Relation
	Peers       map[string]Relation
	Resources   map[string]Resource
}

// Metadata returns the metadata embedded in this charm binary.
func Metadata() (*Meta, error) {
	return parseMeta(metadataYAML)
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return parseMeta(data)
}

func parseMeta(data []byte) (*Meta, error) {
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	v, err := charmSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:        m["name"].(string),
		Summary:     m["summary"].(string),
		Description: m["description"].(string),
		Provides:    parseRelations(m["provides"]),
		Requires:    parseRelations(m["requires"]),
		Peers:       parseRelations(m["peers"]),
		Resources:   parseResources(m["resources"]),
	}
	if series, ok := m["series"].([]interface{}); ok {
		for _, s := range series {
			meta.Series = append(meta.Series, s.(string))
		}
	}
	return meta, nil
}

// Relation returns the relation declared under name in any of the
// provides, requires or peers sections.
func (m *Meta) Relation(name string) (Relation, bool) {
	for _, rels := range []map[string]Relation{m.Provides, m.Requires, m.Peers} {
		if rel, ok := rels[name]; ok {
			return rel, true
		}
	}
	return Relation{}, false
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[interface{}]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{
			Name:      name.(string),
			Interface: relMap["interface"].(string),
			Optional:  relMap["optional"].(bool),
		}
		if scope := relMap["scope"]; scope != nil {
			relation.Scope = scope.(string)
		}
		if relMap["limit"] != nil {
			// Schema defaults to int64, but we know
			// the int range should be more than enough.
			relation.Limit = int(relMap["limit"].(int64))
		}
		result[relation.Name] = relation
	}
	return result
}

func parseResources(resources interface{}) map[string]Resource {
	if resources == nil {
		return nil
	}
	result := make(map[string]Resource)
	for name, res := range resources.(map[interface{}]interface{}) {
		resMap := res.(map[string]interface{})
		resource := Resource{
			Name: name.(string),
			Type: resMap["type"].(string),
		}
		if filename, ok := resMap["filename"].(string); ok {
			resource.Filename = filename
		}
		if desc, ok := resMap["description"].(string); ok {
			resource.Description = desc
		}
		result[resource.Name] = resource
	}
	return result
}

// Schema coercer that expands the interface shorthand notation.
// A consistent format is easier to work with than considering the
// potential difference everywhere.
//
// Supports the following variants::
//
//	provides:
//	  server: riak
//	  admin: http
//	  foobar:
//	    interface: blah
//
//	provides:
//	  server:
//	    interface: mysql
//	    limit:
//	    optional: false
//
// In all input cases, the output is the fully specified interface
// representation as seen in the mysql interface description above.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	s, err := stringC.Coerce(v, path)
	if err == nil {
		return ifaceSchema.Coerce(map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, path)
	}

	// Optional values are context-sensitive and/or have
	// defaults, which is different than what KeyDict can
	// readily support. So just do it here first, then
	// coerce to the real schema.
	v, err = mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	if _, ok := m["scope"]; !ok {
		m["scope"] = ScopeGlobal
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{"scope": schema.Omit},
)

var resourceSchema = schema.FieldMap(
	schema.Fields{
		"type":        schema.OneOf(schema.Const("file"), schema.Const("oci-image")),
		"filename":    schema.String(),
		"description": schema.String(),
	},
	schema.Defaults{
		"filename":    schema.Omit,
		"description": schema.Omit,
	},
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"maintainer":  schema.String(),
		"series":      schema.List(schema.String()),
		"peers":       schema.Map(schema.String(), ifaceExpander(1)),
		"provides":    schema.Map(schema.String(), ifaceExpander(nil)),
		"requires":    schema.Map(schema.String(), ifaceExpander(1)),
		"resources":   schema.Map(schema.String(), resourceSchema),
	},
	schema.Defaults{
		"maintainer": schema.Omit,
		"series":     schema.Omit,
		"provides":   schema.Omit,
		"requires":   schema.Omit,
		"peers":      schema.Omit,
		"resources":  schema.Omit,
	},
)
