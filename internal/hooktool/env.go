// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hooktool

import (
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Environment holds the hook context juju exposes to a charm process
// through environment variables.
type Environment struct {
	UnitName     string
	CharmDir     string
	DispatchPath string
	HookName     string
	RelationName string
	RelationID   string
	RemoteUnit   string
	ModelName    string
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(string) (string, bool)

// EnvironmentFromOS reads the hook context of the current process.
func EnvironmentFromOS() (Environment, error) {
	return ReadEnvironment(os.LookupEnv)
}

// ReadEnvironment builds an Environment from lookup. The unit name is
// required; the hook name falls back to the base name of the dispatch
// path.
func ReadEnvironment(lookup LookupFunc) (Environment, error) {
	get := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := lookup(key); ok && v != "" {
				return v
			}
		}
		return ""
	}
	env := Environment{
		UnitName:     get("JUJU_UNIT_NAME"),
		CharmDir:     get("JUJU_CHARM_DIR", "CHARM_DIR"),
		DispatchPath: get("JUJU_DISPATCH_PATH"),
		HookName:     get("JUJU_HOOK_NAME"),
		RelationName: get("JUJU_RELATION"),
		RelationID:   get("JUJU_RELATION_ID"),
		RemoteUnit:   get("JUJU_REMOTE_UNIT"),
		ModelName:    get("JUJU_MODEL_NAME"),
	}
	if env.UnitName == "" {
		return env, errors.NotFoundf("JUJU_UNIT_NAME")
	}
	if !names.IsValidUnit(env.UnitName) {
		return env, errors.NotValidf("unit name %q", env.UnitName)
	}
	if env.HookName == "" && env.DispatchPath != "" {
		env.HookName = path.Base(env.DispatchPath)
	}
	return env, nil
}

// PathSafeUnitName returns the unit name with its separator replaced so
// it can be used in file names and relation data keys.
func (e Environment) PathSafeUnitName() string {
	return strings.Replace(names.NewUnitTag(e.UnitName).Id(), "/", "_", -1)
}
