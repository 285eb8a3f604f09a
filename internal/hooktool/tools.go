// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hooktool wraps the juju hook tools a charm calls back into
// while it runs a hook.
package hooktool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/runner"
)

var logger = loggo.GetLogger("documize.hooktool")

// Tools runs hook tools for the current hook context.
type Tools struct {
	runner runner.Runner
}

// New returns Tools running hook tools through r.
func New(r runner.Runner) *Tools {
	return &Tools{runner: r}
}

func (t *Tools) run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := t.runner.Run(ctx, name, args...)
	if err != nil {
		return "", errors.Trace(err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (t *Tools) runJSON(ctx context.Context, result interface{}, name string, args ...string) error {
	out, err := t.runner.Run(ctx, name, append([]string{"--format=json"}, args...)...)
	if err != nil {
		return errors.Trace(err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, result); err != nil {
		return errors.Annotatef(err, "decoding %s output", name)
	}
	return nil
}

// StatusSet sets the workload status of the unit.
func (t *Tools) StatusSet(ctx context.Context, info status.StatusInfo) error {
	if !status.ValidWorkloadStatus(info.Status) {
		return errors.NotValidf("workload status %q", info.Status)
	}
	logger.Debugf("setting status %s", info)
	_, err := t.run(ctx, "status-set", info.Status.String(), info.Message)
	return errors.Trace(err)
}

// OpenPort opens the tcp port on the unit's machine.
func (t *Tools) OpenPort(ctx context.Context, port int) error {
	_, err := t.run(ctx, "open-port", fmt.Sprintf("%d/tcp", port))
	return errors.Trace(err)
}

// ClosePort closes the tcp port on the unit's machine.
func (t *Tools) ClosePort(ctx context.Context, port int) error {
	_, err := t.run(ctx, "close-port", fmt.Sprintf("%d/tcp", port))
	return errors.Trace(err)
}

// ConfigGet returns every charm config setting, defaults included.
func (t *Tools) ConfigGet(ctx context.Context) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	if err := t.runJSON(ctx, &settings, "config-get", "--all"); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// UnitGet returns the named unit setting (private-address or
// public-address).
func (t *Tools) UnitGet(ctx context.Context, key string) (string, error) {
	v, err := t.run(ctx, "unit-get", key)
	return v, errors.Trace(err)
}

// PrivateAddress returns the unit's private address.
func (t *Tools) PrivateAddress(ctx context.Context) (string, error) {
	return t.UnitGet(ctx, "private-address")
}

// PublicAddress returns the unit's public address.
func (t *Tools) PublicAddress(ctx context.Context) (string, error) {
	return t.UnitGet(ctx, "public-address")
}

// RelationIDs returns the ids of every relation established on endpoint.
func (t *Tools) RelationIDs(ctx context.Context, endpoint string) ([]string, error) {
	var ids []string
	if err := t.runJSON(ctx, &ids, "relation-ids", endpoint); err != nil {
		return nil, errors.Trace(err)
	}
	return ids, nil
}

// RelationList returns the remote units participating in the relation.
func (t *Tools) RelationList(ctx context.Context, relationID string) ([]string, error) {
	var units []string
	if err := t.runJSON(ctx, &units, "relation-list", "-r", relationID); err != nil {
		return nil, errors.Trace(err)
	}
	return units, nil
}

// RelationGet returns the settings published by unit on the relation.
// An empty unit reads the local unit's own settings.
func (t *Tools) RelationGet(ctx context.Context, relationID, unit string) (map[string]string, error) {
	args := []string{"-r", relationID, "-"}
	if unit != "" {
		args = append(args, unit)
	}
	settings := make(map[string]string)
	if err := t.runJSON(ctx, &settings, "relation-get", args...); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// RelationSet publishes settings for the local unit on the relation.
// Empty values delete the key.
func (t *Tools) RelationSet(ctx context.Context, relationID string, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := []string{"-r", relationID}
	for _, k := range keys {
		args = append(args, k+"="+settings[k])
	}
	_, err := t.run(ctx, "relation-set", args...)
	return errors.Trace(err)
}

// ResourceGet fetches the named resource and returns its local path.
func (t *Tools) ResourceGet(ctx context.Context, name string) (string, error) {
	p, err := t.run(ctx, "resource-get", name)
	if err != nil {
		return "", errors.Annotatef(err, "fetching resource %q", name)
	}
	if p == "" {
		return "", errors.NotFoundf("resource %q", name)
	}
	return p, nil
}

// Log writes msg to the unit's debug-log at level.
func (t *Tools) Log(ctx context.Context, level, msg string) error {
	_, err := t.run(ctx, "juju-log", "-l", level, msg)
	return errors.Trace(err)
}
