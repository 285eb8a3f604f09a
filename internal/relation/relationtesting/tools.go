// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relationtesting provides an in-memory model of relation
// settings for tests.
package relationtesting

import (
	"context"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/testing"
)

// Tools is an in-memory implementation of relation.Tools.
type Tools struct {
	*testing.Stub

	// Relations maps endpoint name to relation ids.
	Relations map[string][]string
	// Settings maps relation id to unit name to settings.
	Settings map[string]map[string]map[string]string
	// LocalUnit is the unit running the charm; it is not listed as a
	// remote unit.
	LocalUnit string
}

// NewTools returns an empty model for the given local unit.
func NewTools(localUnit string) *Tools {
	return &Tools{
		Stub:      &testing.Stub{},
		Relations: make(map[string][]string),
		Settings:  make(map[string]map[string]map[string]string),
		LocalUnit: localUnit,
	}
}

// Relate adds a relation for the endpoint with the given remote units.
func (t *Tools) Relate(endpoint, id string, units ...string) {
	t.Relations[endpoint] = append(t.Relations[endpoint], id)
	t.Settings[id] = map[string]map[string]string{t.LocalUnit: {}}
	for _, u := range units {
		t.Settings[id][u] = map[string]string{}
	}
}

// SetRemote merges settings into those published by unit on id.
func (t *Tools) SetRemote(id, unit string, settings map[string]string) {
	for k, v := range settings {
		t.Settings[id][unit][k] = v
	}
}

// RelationIDs implements relation.Tools.
func (t *Tools) RelationIDs(_ context.Context, endpoint string) ([]string, error) {
	t.MethodCall(t, "RelationIDs", endpoint)
	if err := t.NextErr(); err != nil {
		return nil, err
	}
	return append([]string(nil), t.Relations[endpoint]...), nil
}

// RelationList implements relation.Tools.
func (t *Tools) RelationList(_ context.Context, id string) ([]string, error) {
	t.MethodCall(t, "RelationList", id)
	if err := t.NextErr(); err != nil {
		return nil, err
	}
	var units []string
	for u := range t.Settings[id] {
		if u != t.LocalUnit {
			units = append(units, u)
		}
	}
	sort.Strings(units)
	return units, nil
}

// RelationGet implements relation.Tools.
func (t *Tools) RelationGet(_ context.Context, id, unit string) (map[string]string, error) {
	t.MethodCall(t, "RelationGet", id, unit)
	if err := t.NextErr(); err != nil {
		return nil, err
	}
	settings, ok := t.Settings[id][unit]
	if !ok {
		return nil, errors.NotFoundf("unit %q on %s", unit, id)
	}
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out, nil
}

// RelationSet implements relation.Tools.
func (t *Tools) RelationSet(_ context.Context, id string, settings map[string]string) error {
	t.MethodCall(t, "RelationSet", id, settings)
	if err := t.NextErr(); err != nil {
		return err
	}
	if _, ok := t.Settings[id]; !ok {
		return errors.NotFoundf("relation %s", id)
	}
	for k, v := range settings {
		t.Settings[id][t.LocalUnit][k] = v
	}
	return nil
}
