// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmconfig_test

import (
	"context"
	"encoding/json"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/documize-charm/charm"
	"github.com/juju/documize-charm/internal/charmconfig"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/reactive/reactivetesting"
)

type configSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&configSuite{})

func (s *configSuite) defaults(c *gc.C) map[string]interface{} {
	defaults, err := charmconfig.Defaults()
	c.Assert(err, jc.ErrorIsNil)
	return defaults
}

func (s *configSuite) TestSchemaMatchesCharmConfig(c *gc.C) {
	options, err := charm.ConfigOptions()
	c.Assert(err, jc.ErrorIsNil)
	known := set.NewStrings()
	for name := range options.Options {
		known.Add(name)
	}
	fields := set.NewStrings()
	for name := range charmconfig.Schema() {
		fields.Add(name)
	}
	c.Assert(fields.SortedValues(), jc.DeepEquals, known.SortedValues())
}

func (s *configSuite) TestDefaults(c *gc.C) {
	cfg, err := charmconfig.New(nil, s.defaults(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.Port(), gc.Equals, 80)
	c.Assert(cfg.FQDN(), gc.Equals, "")
	c.Assert(cfg.Validate(), jc.ErrorIsNil)
}

func (s *configSuite) TestJSONNumbers(c *gc.C) {
	var attrs map[string]interface{}
	err := json.Unmarshal([]byte(`{"port": 8080, "fqdn": "docs.example.com", "extra": true}`), &attrs)
	c.Assert(err, jc.ErrorIsNil)

	cfg, err := charmconfig.New(attrs, s.defaults(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.Port(), gc.Equals, 8080)
	c.Assert(cfg.FQDN(), gc.Equals, "docs.example.com")
	c.Assert(cfg.Snapshot(), jc.DeepEquals, map[string]string{"port": "8080", "fqdn": "docs.example.com"})
}

func (s *configSuite) TestInvalid(c *gc.C) {
	_, err := charmconfig.New(map[string]interface{}{"port": "eighty"}, s.defaults(c))
	c.Assert(err, jc.ErrorIs, errors.NotValid)

	cfg, err := charmconfig.New(map[string]interface{}{"port": 70000}, s.defaults(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.Validate(), gc.ErrorMatches, `port 70000 not valid`)
}

type fakeSource struct {
	attrs map[string]interface{}
	err   error
}

func (f *fakeSource) ConfigGet(context.Context) (map[string]interface{}, error) {
	return f.attrs, f.err
}

type providerSuite struct {
	testing.IsolationSuite

	kv     reactivetesting.KV
	source *fakeSource
}

var _ = gc.Suite(&providerSuite{})

func (s *providerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.kv = make(reactivetesting.KV)
	s.source = &fakeSource{attrs: map[string]interface{}{"port": float64(80), "fqdn": ""}}
}

func (s *providerSuite) refresh(c *gc.C, p *charmconfig.Provider) *reactive.State {
	st := reactive.NewState("config-changed", set.NewStrings(), s.kv, nil)
	c.Assert(p.Refresh(context.Background(), st), jc.ErrorIsNil)
	return st
}

func (s *providerSuite) TestFirstRunReportsEverythingChanged(c *gc.C) {
	defaults, err := charmconfig.Defaults()
	c.Assert(err, jc.ErrorIsNil)
	p := charmconfig.NewProvider(s.source, defaults)

	st := s.refresh(c, p)
	c.Assert(st.Flags().SortedValues(), jc.DeepEquals, []string{
		"config.changed", "config.changed.fqdn", "config.changed.port",
	})
	c.Assert(st.Persistent().IsEmpty(), jc.IsTrue)
	c.Assert(p.Config().Port(), gc.Equals, 80)
}

func (s *providerSuite) TestChangeDetectionAfterCommit(c *gc.C) {
	defaults, err := charmconfig.Defaults()
	c.Assert(err, jc.ErrorIsNil)
	p := charmconfig.NewProvider(s.source, defaults)

	st := s.refresh(c, p)
	c.Assert(p.Commit(context.Background(), st), jc.ErrorIsNil)

	st = s.refresh(c, p)
	c.Assert(st.Flags().IsEmpty(), jc.IsTrue)

	s.source.attrs["fqdn"] = "docs.example.com"
	st = s.refresh(c, p)
	c.Assert(st.Flags().SortedValues(), jc.DeepEquals, []string{"config.changed", "config.changed.fqdn"})
}

func (s *providerSuite) TestUncommittedChangeIsReportedAgain(c *gc.C) {
	defaults, err := charmconfig.Defaults()
	c.Assert(err, jc.ErrorIsNil)
	p := charmconfig.NewProvider(s.source, defaults)
	st := s.refresh(c, p)
	c.Assert(p.Commit(context.Background(), st), jc.ErrorIsNil)

	s.source.attrs["port"] = float64(8080)
	st = s.refresh(c, p)
	c.Assert(st.IsSet(charmconfig.ChangedKeyFlag("port")), jc.IsTrue)

	// The dispatch failed, so nothing was committed.
	st = s.refresh(c, p)
	c.Assert(st.IsSet(charmconfig.ChangedKeyFlag("port")), jc.IsTrue)
}

func (s *providerSuite) TestSourceError(c *gc.C) {
	s.source.err = errors.New("config-get: exit status 1")
	p := charmconfig.NewProvider(s.source, nil)
	st := reactive.NewState("install", set.NewStrings(), s.kv, nil)
	err := p.Refresh(context.Background(), st)
	c.Assert(err, gc.ErrorMatches, `reading config: config-get: exit status 1`)
}
