// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tlscertificates implements the requiring side of the
// tls-certificates interface.
package tlscertificates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/internal/relation"
)

// Interface is the relation interface name in metadata.yaml.
const Interface = "tls-certificates"

const (
	// AvailableFlag is set while the certificates endpoint is related.
	AvailableFlag = "certificates.available"

	// CAAvailableFlag is set once the CA certificate is published.
	CAAvailableFlag = "certificates.ca.available"

	// ServerCertAvailableFlag is set once this unit's server certificate
	// and key are published.
	ServerCertAvailableFlag = "certificates.server.cert.available"

	// ServerCertChangedFlag is set for the dispatch when the published
	// server certificate differs from the one seen at the end of the
	// last successful dispatch.
	ServerCertChangedFlag = "certificates.server.cert.changed"

	digestKey = "tlscertificates.server-cert-digest"
)

// Triggers are the transient flags raised by the Endpoint.
var Triggers = reactive.Triggers{ServerCertChangedFlag}

// caSettings is what the CA publishes for every unit.
type caSettings struct {
	CA string `relation:"ca"`
}

// serverCert is the pair the CA publishes under
// "<unit>.server.cert" and "<unit>.server.key".
type serverCert struct {
	Cert string `relation:"cert"`
	Key  string `relation:"key"`
}

func (c serverCert) complete() bool {
	return c.Cert != "" && c.Key != ""
}

// Endpoint is the certificates endpoint.
type Endpoint struct {
	*relation.Endpoint
	unitKey string

	ca     string
	server serverCert
}

// NewEndpoint returns a certificates endpoint. unitKey is the path safe
// unit name the CA keys this unit's certificate by.
func NewEndpoint(name, localUnit, unitKey string, tools relation.Tools) *Endpoint {
	return &Endpoint{
		Endpoint: relation.NewEndpoint(name, localUnit, tools),
		unitKey:  unitKey,
	}
}

// UnitKey returns the path safe unit name used in certificate keys.
func (e *Endpoint) UnitKey() string {
	return e.unitKey
}

// Triggers implements reactive.Triggerer.
func (e *Endpoint) Triggers() reactive.Triggers {
	return Triggers
}

// Refresh implements reactive.Provider.
func (e *Endpoint) Refresh(ctx context.Context, st *reactive.State) error {
	if err := e.Endpoint.Refresh(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := e.decode(); err != nil {
		return errors.Trace(err)
	}
	st.Toggle(AvailableFlag, e.Joined())
	st.Toggle(CAAvailableFlag, e.ca != "")
	st.Toggle(ServerCertAvailableFlag, e.server.complete())
	st.Clear(ServerCertChangedFlag)
	if !e.server.complete() {
		return nil
	}
	var previous string
	if _, err := st.KV().Get(digestKey, &previous); err != nil {
		return errors.Trace(err)
	}
	if previous != digest(e.server) {
		st.SetTransient(ServerCertChangedFlag)
	}
	return nil
}

// decode reads the CA and this unit's server certificate from the first
// remote unit publishing each.
func (e *Endpoint) decode() error {
	e.ca, e.server = "", serverCert{}
	for _, rel := range e.Relations() {
		for _, unit := range rel.Units {
			if e.ca == "" {
				var ca caSettings
				if err := relation.Decode(unit.Settings, &ca); err != nil {
					return errors.Annotatef(err, "reading CA from %s", unit.Name)
				}
				e.ca = ca.CA
			}
			if !e.server.complete() {
				var cert serverCert
				settings := relation.Scoped(unit.Settings, e.unitKey+".server.")
				if err := relation.Decode(settings, &cert); err != nil {
					return errors.Annotatef(err, "reading server certificate from %s", unit.Name)
				}
				e.server = cert
			}
		}
	}
	return nil
}

// Commit implements reactive.Committer.
func (e *Endpoint) Commit(_ context.Context, st *reactive.State) error {
	if !e.server.complete() {
		return nil
	}
	return errors.Trace(st.KV().Put(digestKey, digest(e.server)))
}

func digest(c serverCert) string {
	sum := sha256.Sum256([]byte(c.Cert + "\x00" + c.Key))
	return hex.EncodeToString(sum[:])
}

// RequestServerCert asks the CA for a server certificate.
func (e *Endpoint) RequestServerCert(ctx context.Context, cn string, sans []string, name string) error {
	if cn == "" {
		return errors.NotValidf("empty common name")
	}
	encoded, err := json.Marshal(sans)
	if err != nil {
		return errors.Trace(err)
	}
	err = e.Publish(ctx, map[string]string{
		"unit_name":        e.unitKey,
		"common_name":      cn,
		"sans":             string(encoded),
		"certificate_name": name,
	})
	return errors.Annotate(err, "requesting server certificate")
}

// ServerCert returns this unit's certificate and key, or empty strings
// if the CA has not published them yet.
func (e *Endpoint) ServerCert() (cert, key string) {
	return e.server.Cert, e.server.Key
}

// CA returns the CA certificate.
func (e *Endpoint) CA() string {
	return e.ca
}
