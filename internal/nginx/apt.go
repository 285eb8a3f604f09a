// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package nginx

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/runner"
)

// This is the apt-get command used in cloud-init; the settings mean apt
// won't block waiting for a prompt from the user.
var aptGetCommand = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"apt-get", "--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io", "--assume-yes", "--quiet",
}

// AptGetInstall runs 'apt-get install packages' for the packages listed.
func AptGetInstall(ctx context.Context, r runner.Runner, packages ...string) error {
	args := append([]string(nil), aptGetCommand...)
	args = append(args, "install")
	args = append(args, packages...)
	logger.Infof("installing %v", packages)
	_, err := r.Run(ctx, "env", args...)
	return errors.Annotatef(err, "installing %v", packages)
}
