// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation reads and writes the settings of a charm endpoint's
// relations through the hook tools.
package relation

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/mitchellh/mapstructure"
)

var logger = loggo.GetLogger("documize.relation")

// Tools is the subset of the hook tools used by endpoints.
type Tools interface {
	RelationIDs(ctx context.Context, endpoint string) ([]string, error)
	RelationList(ctx context.Context, relationID string) ([]string, error)
	RelationGet(ctx context.Context, relationID, unit string) (map[string]string, error)
	RelationSet(ctx context.Context, relationID string, settings map[string]string) error
}

// Unit holds the settings one unit published on a relation.
type Unit struct {
	Name     string
	Settings map[string]string
}

// Relation is a single established relation of an endpoint.
type Relation struct {
	ID    string
	Local map[string]string
	Units []Unit
}

// Endpoint is a charm endpoint as seen during a single dispatch.
type Endpoint struct {
	name      string
	localUnit string
	tools     Tools
	relations []Relation
}

// NewEndpoint returns an Endpoint named as in metadata.yaml.
func NewEndpoint(name, localUnit string, tools Tools) *Endpoint {
	return &Endpoint{name: name, localUnit: localUnit, tools: tools}
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// LocalUnit returns the name of the unit running the charm.
func (e *Endpoint) LocalUnit() string {
	return e.localUnit
}

// Refresh reads the settings of every relation of the endpoint.
func (e *Endpoint) Refresh(ctx context.Context) error {
	ids, err := e.tools.RelationIDs(ctx, e.name)
	if err != nil {
		return errors.Annotatef(err, "listing %s relations", e.name)
	}
	sort.Strings(ids)
	relations := make([]Relation, 0, len(ids))
	for _, id := range ids {
		rel := Relation{ID: id}
		if rel.Local, err = e.tools.RelationGet(ctx, id, e.localUnit); err != nil {
			return errors.Annotatef(err, "reading local settings for %s", id)
		}
		units, err := e.tools.RelationList(ctx, id)
		if err != nil {
			return errors.Annotatef(err, "listing units of %s", id)
		}
		sort.Strings(units)
		for _, unit := range units {
			settings, err := e.tools.RelationGet(ctx, id, unit)
			if err != nil {
				return errors.Annotatef(err, "reading settings of %s on %s", unit, id)
			}
			rel.Units = append(rel.Units, Unit{Name: unit, Settings: settings})
		}
		relations = append(relations, rel)
	}
	e.relations = relations
	logger.Tracef("endpoint %s: %d relation(s)", e.name, len(relations))
	return nil
}

// Relations returns the relations read by the last Refresh.
func (e *Endpoint) Relations() []Relation {
	return e.relations
}

// Joined reports whether the endpoint has at least one relation.
func (e *Endpoint) Joined() bool {
	return len(e.relations) > 0
}

// HasUnits reports whether any relation has a remote unit.
func (e *Endpoint) HasUnits() bool {
	for _, rel := range e.relations {
		if len(rel.Units) > 0 {
			return true
		}
	}
	return false
}

// Remote returns the value of key from the first remote unit that
// published it.
func (e *Endpoint) Remote(key string) string {
	for _, rel := range e.relations {
		for _, unit := range rel.Units {
			if v := unit.Settings[key]; v != "" {
				return v
			}
		}
	}
	return ""
}

// Local returns the value this unit published for key on the first
// relation that has it.
func (e *Endpoint) Local(key string) string {
	for _, rel := range e.relations {
		if v := rel.Local[key]; v != "" {
			return v
		}
	}
	return ""
}

// Publish sets settings on every relation of the endpoint.
func (e *Endpoint) Publish(ctx context.Context, settings map[string]string) error {
	for i, rel := range e.relations {
		if err := e.tools.RelationSet(ctx, rel.ID, settings); err != nil {
			return errors.Annotatef(err, "publishing on %s", rel.ID)
		}
		if e.relations[i].Local == nil {
			e.relations[i].Local = make(map[string]string)
		}
		for k, v := range settings {
			e.relations[i].Local[k] = v
		}
	}
	return nil
}

// Scoped returns the settings whose keys start with prefix, with the
// prefix removed.
func Scoped(settings map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for key, value := range settings {
		if rest, ok := strings.CutPrefix(key, prefix); ok && rest != "" {
			out[rest] = value
		}
	}
	return out
}

// Decode copies relation settings into the struct pointed to by out,
// using "relation" struct tags and converting numeric strings.
func Decode(settings map[string]string, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "relation",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(decoder.Decode(settings), "decoding relation settings")
}
