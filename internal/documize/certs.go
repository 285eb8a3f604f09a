// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/juju/documize-charm/internal/reactive"
)

func (c *Charm) requestCert(ctx context.Context, sc *reactive.Scope) error {
	public, err := c.config.Tools.PublicAddress(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	private, err := c.config.Tools.PrivateAddress(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	hostname, err := c.config.Hostname()
	if err != nil {
		return errors.Annotate(err, "reading hostname")
	}
	fqdn := c.settings.Config().FQDN()

	cn := public
	sans := []string{public, private, hostname}
	if fqdn != "" {
		cn = fqdn
		sans = append(sans, fqdn)
	}
	sans = uniq(sans)
	name := c.certificates.UnitKey()
	if err := c.certificates.RequestServerCert(ctx, cn, sans, name); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("requested certificate %q for %q, sans %v", name, cn, sans)
	return sc.Set(CertRequestedFlag)
}

func (c *Charm) saveCertKey(_ context.Context, sc *reactive.Scope) error {
	cert, key := c.certificates.ServerCert()
	if err := writeSecret(c.config.Paths.Cert, []byte(cert), 0644, 0755); err != nil {
		return errors.Annotate(err, "writing certificate")
	}
	if err := writeSecret(c.config.Paths.Key, []byte(key), 0600, 0700); err != nil {
		return errors.Annotate(err, "writing key")
	}
	logger.Infof("saved server certificate to %q", c.config.Paths.Cert)
	return sc.Set(SSLAvailableFlag)
}

// writeSecret replaces path with data, creating missing parent
// directories with dirPerm.
func writeSecret(path string, data []byte, perm, dirPerm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(path, data, perm))
}

func uniq(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
