// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/nginx"
	"github.com/juju/documize-charm/service/systemd"
)

// Variant selects how the site is served.
type Variant string

const (
	// Plain serves the site over plain HTTP.
	Plain Variant = "plain"
	// TLS serves the site with a certificate from the certificates
	// relation, stored in the system certificate directories.
	TLS Variant = "tls"
	// TLSConsolidated is TLS with the certificate and key kept together
	// under /etc/documize/ssl.
	TLSConsolidated Variant = "tls-consolidated"
)

// Variants lists every supported variant.
var Variants = []Variant{Plain, TLS, TLSConsolidated}

// ParseVariant returns the named variant.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == name {
			return v, nil
		}
	}
	return "", errors.NotValidf("variant %q", name)
}

// TLS reports whether the variant serves the site over TLS.
func (v Variant) TLS() bool {
	return v == TLS || v == TLSConsolidated
}

// Paths locates everything the charm writes on the unit's machine.
type Paths struct {
	// InstallDir holds the unpacked Documize bundle. It is replaced as a
	// whole on every install.
	InstallDir string
	// SystemdDir is where the Documize unit file is written.
	SystemdDir string
	// Nginx locates the nginx site configuration.
	Nginx nginx.Paths
	// Cert and Key are where the server certificate and key are written
	// for TLS variants.
	Cert string
	Key  string
}

// UnpackDir is the directory the bundle is extracted into. The bundle
// carries the install directory as its top level entry.
func (p Paths) UnpackDir() string {
	return filepath.Dir(p.InstallDir)
}

// Binary is the Documize server executable.
func (p Paths) Binary() string {
	return filepath.Join(p.InstallDir, "documize")
}

// DefaultPaths returns the standard locations for the variant.
func DefaultPaths(v Variant) Paths {
	paths := Paths{
		InstallDir: "/srv/documize",
		SystemdDir: systemd.EtcSystemdDir,
		Nginx:      nginx.DefaultPaths,
	}
	switch v {
	case TLS:
		paths.Cert = "/etc/ssl/certs/documize.crt"
		paths.Key = "/etc/ssl/private/documize.key"
	case TLSConsolidated:
		paths.Cert = "/etc/documize/ssl/documize.crt"
		paths.Key = "/etc/documize/ssl/documize.key"
	}
	return paths
}

// WithRoot returns the paths relocated under root.
func (p Paths) WithRoot(root string) Paths {
	rebase := func(path string) string {
		if path == "" {
			return ""
		}
		return filepath.Join(root, path)
	}
	return Paths{
		InstallDir: rebase(p.InstallDir),
		SystemdDir: rebase(p.SystemdDir),
		Nginx: nginx.Paths{
			SitesAvailable: rebase(p.Nginx.SitesAvailable),
			SitesEnabled:   rebase(p.Nginx.SitesEnabled),
		},
		Cert: rebase(p.Cert),
		Key:  rebase(p.Key),
	}
}
