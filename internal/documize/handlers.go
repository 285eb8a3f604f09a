// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/charmconfig"
	"github.com/juju/documize-charm/internal/nginx"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation/http"
	"github.com/juju/documize-charm/internal/relation/mysql"
	"github.com/juju/documize-charm/internal/relation/tlscertificates"
)

const upgradeCharmHook = reactive.HookPrefix + "upgrade-charm"

// Handlers returns the handler table for the charm's variant, in
// evaluation order.
func (c *Charm) Handlers() []reactive.Handler {
	handlers := []reactive.Handler{
		c.nginx.InstallHandler(),
		{
			Name:  "install",
			Guard: reactive.Guard{WhenNot: []string{InstalledFlag}},
			Sets:  []string{InstalledFlag},
			Body:  c.install,
		},
		{
			Name: "create_db",
			Guard: reactive.Guard{
				When:    []string{mysql.ConnectedFlag},
				WhenNot: []string{DBCreatedFlag},
			},
			Sets: []string{DBCreatedFlag},
			Body: c.createDB,
		},
		{
			Name: "get_set_db_conn",
			Guard: reactive.Guard{
				When:    []string{mysql.AvailableFlag, InstalledFlag},
				WhenNot: []string{SystemdAvailableFlag},
			},
			Sets: []string{SystemdAvailableFlag},
			Body: c.writeServiceUnit,
		},
	}
	if c.config.Variant.TLS() {
		handlers = append(handlers,
			reactive.Handler{
				Name: "send_data",
				Guard: reactive.Guard{
					When:    []string{tlscertificates.AvailableFlag},
					WhenNot: []string{CertRequestedFlag},
				},
				Sets: []string{CertRequestedFlag},
				Body: c.requestCert,
			},
			reactive.Handler{
				Name: "save_crt_key",
				Guard: reactive.Guard{
					When:    []string{tlscertificates.ServerCertAvailableFlag},
					WhenNot: []string{SSLAvailableFlag},
				},
				Sets: []string{SSLAvailableFlag},
				Body: c.saveCertKey,
			},
		)
	}

	webWhen := []string{nginx.AvailableFlag, SystemdAvailableFlag}
	if c.config.Variant.TLS() {
		webWhen = append(webWhen, SSLAvailableFlag)
	}
	handlers = append(handlers,
		reactive.Handler{
			Name: "configure_webserver",
			Guard: reactive.Guard{
				When:    webWhen,
				WhenNot: []string{WebAvailableFlag},
			},
			Sets: []string{WebAvailableFlag},
			Body: c.configureWebserver,
		},
		reactive.Handler{
			Name:  "set_status_persist",
			Guard: reactive.Guard{When: []string{WebAvailableFlag}},
			Body:  c.setStatusPersist,
		},
		reactive.Handler{
			Name:  "setup_website",
			Guard: reactive.Guard{When: []string{http.AvailableFlag}},
			Body:  c.setupWebsite,
		},
		reactive.Handler{
			Name: "react_to_config_changed",
			Kind: reactive.Reset,
			Guard: reactive.Guard{
				When: []string{WebAvailableFlag},
				WhenAny: []string{
					charmconfig.ChangedKeyFlag(charmconfig.PortKey),
					charmconfig.ChangedKeyFlag(charmconfig.FQDNKey),
				},
			},
			Clears: []string{WebAvailableFlag},
			Body:   clearing(WebAvailableFlag),
		},
	)
	if c.config.Variant.TLS() {
		handlers = append(handlers,
			reactive.Handler{
				Name: "react_to_fqdn_changed_tls",
				Kind: reactive.Reset,
				Guard: reactive.Guard{
					When:    []string{CertRequestedFlag},
					WhenAny: []string{charmconfig.ChangedKeyFlag(charmconfig.FQDNKey)},
				},
				Clears: []string{CertRequestedFlag, SSLAvailableFlag},
				Body:   clearing(CertRequestedFlag, SSLAvailableFlag),
			},
			reactive.Handler{
				Name: "react_to_cert_changed",
				Kind: reactive.Reset,
				Guard: reactive.Guard{
					When:    []string{SSLAvailableFlag},
					WhenAny: []string{tlscertificates.ServerCertChangedFlag},
				},
				Clears: []string{SSLAvailableFlag, WebAvailableFlag},
				Body:   clearing(SSLAvailableFlag, WebAvailableFlag),
			},
		)
	}
	handlers = append(handlers, reactive.Handler{
		Name: "react_to_upgrade_charm",
		Kind: reactive.Reset,
		Guard: reactive.Guard{
			When:    []string{InstalledFlag},
			WhenAny: []string{upgradeCharmHook},
		},
		Clears: []string{InstalledFlag, SystemdAvailableFlag, WebAvailableFlag},
		Body:   clearing(InstalledFlag, SystemdAvailableFlag, WebAvailableFlag),
	})
	return handlers
}

// clearing returns a body clearing flags so that the handlers owning them
// run again.
func clearing(flags ...string) reactive.Body {
	return func(_ context.Context, sc *reactive.Scope) error {
		for _, f := range flags {
			if err := sc.Clear(f); err != nil {
				return errors.Trace(err)
			}
		}
		logger.Infof("%s: cleared %v", sc.Handler(), flags)
		return nil
	}
}
