// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"
	_ "embed"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/service/common"
)

//go:embed templates/documize.nginx.tmpl
var siteTemplate string

func (c *Charm) configureWebserver(ctx context.Context, sc *reactive.Scope) error {
	if err := c.setStatus(ctx, status.Maintenance, "Configuring website"); err != nil {
		return errors.Trace(err)
	}
	settings := c.settings.Config()
	port := settings.Port()
	vars := map[string]interface{}{
		"port":     port,
		"fqdn":     settings.FQDN(),
		"upstream": UpstreamPort,
		"tls":      c.config.Variant.TLS(),
		"cert":     c.config.Paths.Cert,
		"key":      c.config.Paths.Key,
	}
	if err := c.nginx.ConfigureSite(SiteName, siteTemplate, vars); err != nil {
		return errors.Trace(err)
	}
	if err := c.openPort(ctx, sc.KV(), port); err != nil {
		return errors.Trace(err)
	}
	for _, name := range []string{NginxServiceName, ServiceName} {
		if err := c.restart(ctx, name); err != nil {
			return errors.Trace(err)
		}
	}
	if err := c.setAvailableStatus(ctx); err != nil {
		return errors.Trace(err)
	}
	return sc.Set(WebAvailableFlag)
}

// openPort opens port, closing the port opened by a previous dispatch if
// it differs.
func (c *Charm) openPort(ctx context.Context, kv reactive.KV, port int) error {
	var previous int
	if _, err := kv.Get(openedPortKey, &previous); err != nil {
		return errors.Trace(err)
	}
	if previous != 0 && previous != port {
		if err := c.config.Tools.ClosePort(ctx, previous); err != nil {
			return errors.Trace(err)
		}
		logger.Infof("closed port %d", previous)
	}
	if err := c.config.Tools.OpenPort(ctx, port); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(kv.Put(openedPortKey, port))
}

func (c *Charm) restart(ctx context.Context, name string) error {
	svc, err := c.config.NewService(name, common.Conf{})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(svc.StartOrRestart(ctx))
}

func (c *Charm) setStatusPersist(ctx context.Context, _ *reactive.Scope) error {
	return errors.Trace(c.setAvailableStatus(ctx))
}

func (c *Charm) setAvailableStatus(ctx context.Context) error {
	addr, err := c.config.Tools.PublicAddress(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.setStatus(ctx, status.Active, "Documize available: "+addr))
}

func (c *Charm) setupWebsite(ctx context.Context, _ *reactive.Scope) error {
	addr, err := c.config.Tools.PrivateAddress(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	port := c.settings.Config().Port()
	return errors.Trace(c.website.Configure(ctx, addr, port))
}
