// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package nginx installs nginx and renders sites for it.
package nginx

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flosch/pongo2"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/runner"
)

var logger = loggo.GetLogger("documize.nginx")

// AvailableFlag is set once nginx is installed.
const AvailableFlag = "nginx.available"

// Paths locates nginx's configuration.
type Paths struct {
	SitesAvailable string
	SitesEnabled   string
}

// DefaultPaths are the locations used by the Ubuntu nginx package.
var DefaultPaths = Paths{
	SitesAvailable: "/etc/nginx/sites-available",
	SitesEnabled:   "/etc/nginx/sites-enabled",
}

// Layer installs nginx and manages its sites.
type Layer struct {
	paths  Paths
	runner runner.Runner
}

// New returns a Layer using paths.
func New(paths Paths, r runner.Runner) *Layer {
	return &Layer{paths: paths, runner: r}
}

// Install installs nginx and disables the default site.
func (l *Layer) Install(ctx context.Context) error {
	if err := AptGetInstall(ctx, l.runner, "nginx"); err != nil {
		return errors.Trace(err)
	}
	defaultSite := filepath.Join(l.paths.SitesEnabled, "default")
	if err := os.Remove(defaultSite); err != nil && !os.IsNotExist(err) {
		return errors.Annotate(err, "disabling default site")
	}
	return nil
}

// InstallHandler returns the handler installing nginx on a fresh unit.
func (l *Layer) InstallHandler() reactive.Handler {
	return reactive.Handler{
		Name:  "install_nginx",
		Guard: reactive.Guard{WhenNot: []string{AvailableFlag}},
		Sets:  []string{AvailableFlag},
		Body: func(ctx context.Context, sc *reactive.Scope) error {
			if err := l.Install(ctx); err != nil {
				return errors.Trace(err)
			}
			return sc.Set(AvailableFlag)
		},
	}
}

// SitePath returns where the named site's configuration is written.
func (l *Layer) SitePath(name string) string {
	return filepath.Join(l.paths.SitesAvailable, name)
}

// ConfigureSite renders the template source with vars as the named
// site, replacing any previous rendering, and enables it. Values are
// written verbatim; nginx configuration is not HTML.
func (l *Layer) ConfigureSite(name, source string, vars map[string]interface{}) error {
	tpl, err := pongo2.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return errors.Annotatef(err, "parsing template for site %q", name)
	}
	out, err := tpl.ExecuteBytes(pongo2.Context(vars))
	if err != nil {
		return errors.Annotatef(err, "rendering site %q", name)
	}
	for _, dir := range []string{l.paths.SitesAvailable, l.paths.SitesEnabled} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Trace(err)
		}
	}
	available := l.SitePath(name)
	if err := utils.AtomicWriteFile(available, out, 0644); err != nil {
		return errors.Annotatef(err, "writing site %q", name)
	}

	enabled := filepath.Join(l.paths.SitesEnabled, name)
	if target, err := os.Readlink(enabled); err == nil && target == available {
		return nil
	}
	if err := os.Remove(enabled); err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	if err := os.Symlink(available, enabled); err != nil {
		return errors.Annotatef(err, "enabling site %q", name)
	}
	logger.Debugf("site %q enabled", name)
	return nil
}
