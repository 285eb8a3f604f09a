// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmconfig

import (
	"context"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"

	"github.com/juju/documize-charm/internal/reactive"
)

var logger = loggo.GetLogger("documize.charmconfig")

const (
	// ChangedFlag is set for the dispatch when any setting changed.
	ChangedFlag = "config.changed"

	snapshotKey = "charmconfig.snapshot"
)

// Triggers are the transient flags raised by the Provider.
var Triggers = reactive.Triggers{ChangedFlag, ChangedFlag + "."}

// ChangedKeyFlag returns the flag set for the dispatch when key changed.
func ChangedKeyFlag(key string) string {
	return ChangedFlag + "." + key
}

// Source reads the unit's current config settings.
type Source interface {
	ConfigGet(ctx context.Context) (map[string]interface{}, error)
}

// Provider reads the config at the start of every dispatch and raises
// config.changed flags for settings that differ from those seen at the
// end of the last successful dispatch.
type Provider struct {
	source   Source
	defaults schema.Defaults
	current  *Config
}

// NewProvider returns a Provider reading from source.
func NewProvider(source Source, defaults schema.Defaults) *Provider {
	return &Provider{source: source, defaults: defaults}
}

// Name implements reactive.Provider.
func (p *Provider) Name() string {
	return "config"
}

// Triggers implements reactive.Triggerer.
func (p *Provider) Triggers() reactive.Triggers {
	return Triggers
}

// Refresh implements reactive.Provider.
func (p *Provider) Refresh(ctx context.Context, st *reactive.State) error {
	attrs, err := p.source.ConfigGet(ctx)
	if err != nil {
		return errors.Annotate(err, "reading config")
	}
	cfg, err := New(attrs, p.defaults)
	if err != nil {
		return errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Trace(err)
	}
	p.current = cfg

	var previous map[string]string
	if _, err := st.KV().Get(snapshotKey, &previous); err != nil {
		return errors.Trace(err)
	}
	var changed []string
	for key, value := range cfg.Snapshot() {
		if old, ok := previous[key]; !ok || old != value {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	for _, key := range changed {
		st.SetTransient(ChangedKeyFlag(key))
	}
	if len(changed) > 0 {
		st.SetTransient(ChangedFlag)
		logger.Debugf("config changed: %v", changed)
	}
	return nil
}

// Commit implements reactive.Committer.
func (p *Provider) Commit(_ context.Context, st *reactive.State) error {
	if p.current == nil {
		return nil
	}
	return errors.Trace(st.KV().Put(snapshotKey, p.current.Snapshot()))
}

// Config returns the settings read by the last Refresh.
func (p *Provider) Config() *Config {
	return p.current
}
