// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation/mysql"
)

// assessStatus reports why the site is not yet being served. Once it is,
// set_status_persist owns the status.
func (c *Charm) assessStatus(ctx context.Context, st *reactive.State) error {
	if st.IsSet(WebAvailableFlag) {
		return nil
	}
	var missing []string
	if c.required(DatabaseEndpoint) && !c.database.Joined() {
		missing = append(missing, DatabaseEndpoint)
	}
	if c.certificates != nil && c.required(CertificatesEndpoint) && !c.certificates.Joined() {
		missing = append(missing, CertificatesEndpoint)
	}
	if len(missing) > 0 {
		msg := "Missing relation: " + strings.Join(missing, ", ")
		return errors.Trace(c.setStatus(ctx, status.Blocked, msg))
	}
	return errors.Trace(c.setStatus(ctx, status.Waiting, "Waiting for "+c.pending(st)))
}

// required reports whether metadata.yaml declares the endpoint as
// mandatory.
func (c *Charm) required(endpoint string) bool {
	rel, ok := c.meta.Relation(endpoint)
	return ok && !rel.Optional
}

func (c *Charm) pending(st *reactive.State) string {
	switch {
	case !st.IsSet(InstalledFlag):
		return "installation"
	case !st.IsSet(mysql.AvailableFlag):
		return "database"
	case c.certificates != nil && !st.IsSet(SSLAvailableFlag):
		return "certificate"
	}
	return "web server"
}
