// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package documize holds the handlers that install, configure and serve
// Documize, and wires them to the relation endpoints they react to.
package documize

import (
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/documize-charm/charm"
	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/charmconfig"
	"github.com/juju/documize-charm/internal/flagstore"
	"github.com/juju/documize-charm/internal/nginx"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation"
	"github.com/juju/documize-charm/internal/relation/http"
	"github.com/juju/documize-charm/internal/relation/mysql"
	"github.com/juju/documize-charm/internal/relation/tlscertificates"
	"github.com/juju/documize-charm/internal/runner"
	"github.com/juju/documize-charm/service/common"
	"github.com/juju/documize-charm/service/systemd"
)

var logger = loggo.GetLogger("documize.charm")

// Endpoint names from metadata.yaml.
const (
	DatabaseEndpoint     = "database"
	CertificatesEndpoint = "certificates"
	WebsiteEndpoint      = "website"
)

// HookTools is the subset of the hook tools used by the handlers.
type HookTools interface {
	relation.Tools
	charmconfig.Source

	StatusSet(ctx context.Context, info status.StatusInfo) error
	OpenPort(ctx context.Context, port int) error
	ClosePort(ctx context.Context, port int) error
	PrivateAddress(ctx context.Context) (string, error)
	PublicAddress(ctx context.Context) (string, error)
	ResourceGet(ctx context.Context, name string) (string, error)
}

// Service is a systemd service the handlers write and (re)start.
type Service interface {
	WriteUnit(ctx context.Context) error
	StartOrRestart(ctx context.Context) error
}

// ServiceFactory returns the named service. conf is empty for services
// whose unit file is owned by a package.
type ServiceFactory func(name string, conf common.Conf) (Service, error)

// SystemdServices returns a ServiceFactory writing unit files into dir.
func SystemdServices(dir string) ServiceFactory {
	return func(name string, conf common.Conf) (Service, error) {
		svc, err := systemd.NewServiceInDir(name, conf, dir)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return svc, nil
	}
}

// Config holds the dependencies of a Charm.
type Config struct {
	Variant  Variant
	Paths    Paths
	UnitName string

	// UnitKey is the path-safe unit name keying this unit's certificate
	// requests.
	UnitKey string

	// Meta is the charm metadata the endpoints are checked against. The
	// embedded metadata.yaml is used when nil.
	Meta *charm.Meta

	Tools      HookTools
	Runner     runner.Runner
	Accounts   Accounts
	NewService ServiceFactory

	// Hostname returns the machine's hostname, used as a certificate SAN.
	Hostname func() (string, error)
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if _, err := ParseVariant(string(c.Variant)); err != nil {
		return errors.Trace(err)
	}
	if c.UnitName == "" {
		return errors.NotValidf("empty UnitName")
	}
	if c.UnitKey == "" {
		return errors.NotValidf("empty UnitKey")
	}
	if c.Paths.InstallDir == "" {
		return errors.NotValidf("empty install dir")
	}
	if c.Variant.TLS() && (c.Paths.Cert == "" || c.Paths.Key == "") {
		return errors.NotValidf("variant %q without certificate paths", c.Variant)
	}
	if c.Tools == nil {
		return errors.NotValidf("nil Tools")
	}
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if c.Accounts == nil {
		return errors.NotValidf("nil Accounts")
	}
	if c.NewService == nil {
		return errors.NotValidf("nil NewService")
	}
	return nil
}

// Charm is the Documize charm for one unit and variant.
type Charm struct {
	config Config
	meta   *charm.Meta

	settings     *charmconfig.Provider
	database     *mysql.Endpoint
	certificates *tlscertificates.Endpoint
	website      *http.Endpoint
	nginx        *nginx.Layer
}

// New returns a Charm for a validated config.
func New(config Config) (*Charm, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Hostname == nil {
		config.Hostname = os.Hostname
	}
	meta := config.Meta
	if meta == nil {
		var err error
		if meta, err = charm.Metadata(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err := checkMetadata(meta, config.Variant); err != nil {
		return nil, errors.Trace(err)
	}
	defaults, err := charmconfig.Defaults()
	if err != nil {
		return nil, errors.Trace(err)
	}
	c := &Charm{
		config:   config,
		meta:     meta,
		settings: charmconfig.NewProvider(config.Tools, defaults),
		database: mysql.NewEndpoint(DatabaseEndpoint, config.UnitName, dbPrefix, config.Tools),
		website:  http.NewEndpoint(WebsiteEndpoint, config.UnitName, config.Tools),
		nginx:    nginx.New(config.Paths.Nginx, config.Runner),
	}
	if config.Variant.TLS() {
		c.certificates = tlscertificates.NewEndpoint(CertificatesEndpoint, config.UnitName, config.UnitKey, config.Tools)
	}
	return c, nil
}

type declaredEndpoint struct {
	name     string
	iface    string
	provides bool
}

// checkMetadata checks that meta declares the endpoints and resource the
// handlers of variant use, with the interfaces they speak.
func checkMetadata(meta *charm.Meta, variant Variant) error {
	endpoints := []declaredEndpoint{{name: DatabaseEndpoint, iface: mysql.Interface}}
	if variant.TLS() {
		endpoints = append(endpoints, declaredEndpoint{name: CertificatesEndpoint, iface: tlscertificates.Interface})
	}
	endpoints = append(endpoints, declaredEndpoint{name: WebsiteEndpoint, iface: http.Interface, provides: true})
	for _, ep := range endpoints {
		section, role := meta.Requires, "requires"
		if ep.provides {
			section, role = meta.Provides, "provides"
		}
		rel, ok := section[ep.name]
		if !ok {
			return errors.NotValidf("metadata without %s endpoint %q", role, ep.name)
		}
		if rel.Interface != ep.iface {
			return errors.NotValidf("interface %q of endpoint %q", rel.Interface, ep.name)
		}
	}
	if res, ok := meta.Resources[BundleResource]; !ok || res.Type != "file" {
		return errors.NotValidf("metadata without file resource %q", BundleResource)
	}
	return nil
}

// Triggers returns every transient flag a dispatch of any variant may
// raise.
func Triggers() reactive.Triggers {
	triggers := reactive.Triggers{reactive.HookPrefix}
	triggers = append(triggers, charmconfig.Triggers...)
	return append(triggers, tlscertificates.Triggers...)
}

// Variant returns the variant the charm was built for.
func (c *Charm) Variant() Variant {
	return c.config.Variant
}

// Providers returns the flag providers consulted at the start of every
// dispatch.
func (c *Charm) Providers() []reactive.Provider {
	providers := []reactive.Provider{c.settings, c.database}
	if c.certificates != nil {
		providers = append(providers, c.certificates)
	}
	return append(providers, c.website)
}

// DispatcherConfig returns the dispatcher configuration running this
// charm's handlers against store.
func (c *Charm) DispatcherConfig(store *flagstore.Store) reactive.Config {
	return reactive.Config{
		Store:         store,
		Handlers:      c.Handlers(),
		Providers:     c.Providers(),
		AfterDispatch: []reactive.AfterFunc{c.assessStatus},
	}
}

func (c *Charm) setStatus(ctx context.Context, s status.Status, msg string) error {
	logger.Debugf("status %s: %s", s, msg)
	err := c.config.Tools.StatusSet(ctx, status.StatusInfo{Status: s, Message: msg})
	return errors.Trace(err)
}
