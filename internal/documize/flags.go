// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

// Flags owned by the Documize handlers.
const (
	InstalledFlag        = "documize.installed"
	DBCreatedFlag        = "documize.db.created"
	SystemdAvailableFlag = "documize.systemd.available"
	CertRequestedFlag    = "documize.cert.requested"
	SSLAvailableFlag     = "documize.ssl.available"
	WebAvailableFlag     = "documize.web.available"
)

const (
	// ServiceName is the systemd service running Documize.
	ServiceName = "documize"
	// NginxServiceName is the systemd service running nginx.
	NginxServiceName = "nginx"
	// SiteName is the nginx site serving Documize.
	SiteName = "documize"
	// BundleResource is the resource holding the Documize bundle.
	BundleResource = "bdist"
	// UpstreamPort is the local port Documize itself listens on.
	UpstreamPort = 5001

	systemUser  = "documize"
	systemGroup = "documize"
	dbName      = "documize"
	dbPrefix    = "documize"

	saltKey       = "documize.salt"
	openedPortKey = "documize.opened-port"
)
