// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hooktool_test

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/hooktool"
)

type toolsSuite struct {
	runner *MockRunner
	tools  *hooktool.Tools
}

var _ = gc.Suite(&toolsSuite{})

func (s *toolsSuite) setupMocks(c *gc.C) *gomock.Controller {
	ctrl := gomock.NewController(c)
	s.runner = NewMockRunner(ctrl)
	s.tools = hooktool.New(s.runner)
	return ctrl
}

func (s *toolsSuite) TestStatusSet(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "status-set", "active", "Documize available: 10.0.0.1").Return(nil, nil)

	err := s.tools.StatusSet(context.Background(), status.StatusInfo{
		Status:  status.Active,
		Message: "Documize available: 10.0.0.1",
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *toolsSuite) TestStatusSetInvalid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	err := s.tools.StatusSet(context.Background(), status.StatusInfo{Status: "error"})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *toolsSuite) TestOpenClosePort(c *gc.C) {
	defer s.setupMocks(c).Finish()

	gomock.InOrder(
		s.runner.EXPECT().Run(gomock.Any(), "open-port", "443/tcp").Return(nil, nil),
		s.runner.EXPECT().Run(gomock.Any(), "close-port", "80/tcp").Return(nil, nil),
	)

	c.Assert(s.tools.OpenPort(context.Background(), 443), jc.ErrorIsNil)
	c.Assert(s.tools.ClosePort(context.Background(), 80), jc.ErrorIsNil)
}

func (s *toolsSuite) TestConfigGet(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "config-get", "--format=json", "--all").
		Return([]byte(`{"port": 8080, "fqdn": "docs.example.com"}`), nil)

	settings, err := s.tools.ConfigGet(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings, jc.DeepEquals, map[string]interface{}{
		"port": float64(8080),
		"fqdn": "docs.example.com",
	})
}

func (s *toolsSuite) TestUnitGetTrimsOutput(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "unit-get", "public-address").Return([]byte("10.0.0.1\n"), nil)

	addr, err := s.tools.PublicAddress(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(addr, gc.Equals, "10.0.0.1")
}

func (s *toolsSuite) TestRelationQueries(c *gc.C) {
	defer s.setupMocks(c).Finish()

	gomock.InOrder(
		s.runner.EXPECT().Run(gomock.Any(), "relation-ids", "--format=json", "database").
			Return([]byte(`["database:3"]`), nil),
		s.runner.EXPECT().Run(gomock.Any(), "relation-list", "--format=json", "-r", "database:3").
			Return([]byte(`["mysql/0"]`), nil),
		s.runner.EXPECT().Run(gomock.Any(), "relation-get", "--format=json", "-r", "database:3", "-", "mysql/0").
			Return([]byte(`{"db_host": "10.0.0.9"}`), nil),
	)

	ids, err := s.tools.RelationIDs(context.Background(), "database")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ids, jc.DeepEquals, []string{"database:3"})

	units, err := s.tools.RelationList(context.Background(), "database:3")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(units, jc.DeepEquals, []string{"mysql/0"})

	settings, err := s.tools.RelationGet(context.Background(), "database:3", "mysql/0")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings, jc.DeepEquals, map[string]string{"db_host": "10.0.0.9"})
}

func (s *toolsSuite) TestRelationIDsEmptyOutput(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "relation-ids", "--format=json", "website").Return([]byte("\n"), nil)

	ids, err := s.tools.RelationIDs(context.Background(), "website")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ids, gc.HasLen, 0)
}

func (s *toolsSuite) TestRelationSetSortsKeys(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "relation-set", "-r", "website:1", "hostname=10.0.0.2", "port=80").Return(nil, nil)

	err := s.tools.RelationSet(context.Background(), "website:1", map[string]string{
		"port":     "80",
		"hostname": "10.0.0.2",
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *toolsSuite) TestResourceGetMissing(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "resource-get", "bdist").Return([]byte(""), nil)

	_, err := s.tools.ResourceGet(context.Background(), "bdist")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *toolsSuite) TestResourceGetFails(c *gc.C) {
	defer s.setupMocks(c).Finish()

	s.runner.EXPECT().Run(gomock.Any(), "resource-get", "bdist").Return(nil, errors.New("exit status 1"))

	_, err := s.tools.ResourceGet(context.Background(), "bdist")
	c.Assert(err, gc.ErrorMatches, `fetching resource "bdist": exit status 1`)
}

type environmentSuite struct{}

var _ = gc.Suite(&environmentSuite{})

func lookupFrom(env map[string]string) hooktool.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func (s *environmentSuite) TestReadEnvironment(c *gc.C) {
	env, err := hooktool.ReadEnvironment(lookupFrom(map[string]string{
		"JUJU_UNIT_NAME":     "documize/0",
		"CHARM_DIR":          "/var/lib/juju/agents/unit-documize-0/charm",
		"JUJU_DISPATCH_PATH": "hooks/config-changed",
	}))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(env.HookName, gc.Equals, "config-changed")
	c.Check(env.CharmDir, gc.Equals, "/var/lib/juju/agents/unit-documize-0/charm")
	c.Check(env.PathSafeUnitName(), gc.Equals, "documize_0")
}

func (s *environmentSuite) TestReadEnvironmentPrefersHookName(c *gc.C) {
	env, err := hooktool.ReadEnvironment(lookupFrom(map[string]string{
		"JUJU_UNIT_NAME":     "documize/1",
		"JUJU_HOOK_NAME":     "install",
		"JUJU_DISPATCH_PATH": "hooks/start",
	}))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(env.HookName, gc.Equals, "install")
}

func (s *environmentSuite) TestReadEnvironmentMissingUnit(c *gc.C) {
	_, err := hooktool.ReadEnvironment(lookupFrom(nil))
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *environmentSuite) TestReadEnvironmentInvalidUnit(c *gc.C) {
	_, err := hooktool.ReadEnvironment(lookupFrom(map[string]string{"JUJU_UNIT_NAME": "documize"}))
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}
