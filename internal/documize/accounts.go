// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"
	"os/user"

	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/runner"
)

// Accounts ensures the system account the service runs as exists.
type Accounts interface {
	EnsureUser(ctx context.Context, name, group string) error
}

// SystemAccounts creates system users and groups with the shadow
// utilities.
type SystemAccounts struct {
	Runner      runner.Runner
	LookupUser  func(name string) (*user.User, error)
	LookupGroup func(name string) (*user.Group, error)
}

// NewSystemAccounts returns SystemAccounts consulting the system
// account databases.
func NewSystemAccounts(r runner.Runner) *SystemAccounts {
	return &SystemAccounts{
		Runner:      r,
		LookupUser:  user.Lookup,
		LookupGroup: user.LookupGroup,
	}
}

// EnsureUser creates group and a system user name in it, skipping
// whichever already exists.
func (a *SystemAccounts) EnsureUser(ctx context.Context, name, group string) error {
	_, err := a.LookupGroup(group)
	switch err.(type) {
	case nil:
	case user.UnknownGroupError:
		if _, err := a.Runner.Run(ctx, "groupadd", "--system", group); err != nil {
			return errors.Annotatef(err, "creating group %q", group)
		}
		logger.Infof("created group %q", group)
	default:
		return errors.Annotatef(err, "looking up group %q", group)
	}

	_, err = a.LookupUser(name)
	switch err.(type) {
	case nil:
		return nil
	case user.UnknownUserError:
	default:
		return errors.Annotatef(err, "looking up user %q", name)
	}
	_, err = a.Runner.Run(ctx, "useradd",
		"--system",
		"--gid", group,
		"--no-create-home",
		"--shell", "/usr/sbin/nologin",
		name,
	)
	if err != nil {
		return errors.Annotatef(err, "creating user %q", name)
	}
	logger.Infof("created user %q", name)
	return nil
}
