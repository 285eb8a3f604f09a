// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/documize-charm/internal/documize"
)

type variantSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&variantSuite{})

func (*variantSuite) TestParseVariant(c *gc.C) {
	for _, v := range documize.Variants {
		parsed, err := documize.ParseVariant(string(v))
		c.Check(err, jc.ErrorIsNil)
		c.Check(parsed, gc.Equals, v)
	}
	_, err := documize.ParseVariant("tls-fancy")
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Assert(err, gc.ErrorMatches, `variant "tls-fancy" not valid`)
}

func (*variantSuite) TestTLS(c *gc.C) {
	c.Check(documize.Plain.TLS(), jc.IsFalse)
	c.Check(documize.TLS.TLS(), jc.IsTrue)
	c.Check(documize.TLSConsolidated.TLS(), jc.IsTrue)
}

func (*variantSuite) TestDefaultPaths(c *gc.C) {
	plain := documize.DefaultPaths(documize.Plain)
	c.Check(plain.InstallDir, gc.Equals, "/srv/documize")
	c.Check(plain.UnpackDir(), gc.Equals, "/srv")
	c.Check(plain.Binary(), gc.Equals, "/srv/documize/documize")
	c.Check(plain.SystemdDir, gc.Equals, "/etc/systemd/system")
	c.Check(plain.Cert, gc.Equals, "")

	tls := documize.DefaultPaths(documize.TLS)
	c.Check(tls.Cert, gc.Equals, "/etc/ssl/certs/documize.crt")
	c.Check(tls.Key, gc.Equals, "/etc/ssl/private/documize.key")

	consolidated := documize.DefaultPaths(documize.TLSConsolidated)
	c.Check(consolidated.Cert, gc.Equals, "/etc/documize/ssl/documize.crt")
	c.Check(consolidated.Key, gc.Equals, "/etc/documize/ssl/documize.key")
}

func (*variantSuite) TestWithRoot(c *gc.C) {
	paths := documize.DefaultPaths(documize.TLS).WithRoot("/tmp/root")
	c.Check(paths.InstallDir, gc.Equals, "/tmp/root/srv/documize")
	c.Check(paths.Nginx.SitesEnabled, gc.Equals, "/tmp/root/etc/nginx/sites-enabled")
	c.Check(paths.Key, gc.Equals, "/tmp/root/etc/ssl/private/documize.key")

	plain := documize.DefaultPaths(documize.Plain).WithRoot("/tmp/root")
	c.Check(plain.Cert, gc.Equals, "")
}
