// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/juju/utils/v4/tar"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/reactive"
)

var gzipMagic = []byte{0x1f, 0x8b}

func (c *Charm) install(ctx context.Context, sc *reactive.Scope) error {
	if err := c.setStatus(ctx, status.Maintenance, "Installing Documize"); err != nil {
		return errors.Trace(err)
	}
	if err := c.config.Accounts.EnsureUser(ctx, systemUser, systemGroup); err != nil {
		return errors.Trace(err)
	}

	installDir := c.config.Paths.InstallDir
	if err := os.RemoveAll(installDir); err != nil {
		return errors.Annotatef(err, "removing %q", installDir)
	}
	bundle, err := c.config.Tools.ResourceGet(ctx, BundleResource)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(c.config.Paths.UnpackDir(), 0755); err != nil {
		return errors.Trace(err)
	}
	if err := unpackBundle(bundle, c.config.Paths.UnpackDir()); err != nil {
		return errors.Trace(err)
	}
	if _, err := os.Stat(installDir); err != nil {
		return errors.Annotatef(err, "bundle %q did not provide %q", bundle, installDir)
	}

	if err := c.setStatus(ctx, status.Active, "Documize installation complete"); err != nil {
		return errors.Trace(err)
	}
	return sc.Set(InstalledFlag)
}

// unpackBundle extracts the tar archive at path, compressed with gzip or
// not, into dir.
func unpackBundle(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Annotate(err, "opening bundle")
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil {
		logger.Infof("unpacking %s bundle %q into %q", humanize.Bytes(uint64(info.Size())), path, dir)
	}

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return errors.Annotate(err, "uncompressing bundle")
		}
		defer gz.Close()
		r = gz
	}
	if err := tar.UntarFiles(r, dir); err != nil {
		return errors.Annotate(err, "extracting bundle")
	}
	return nil
}
