// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package common

import (
	"github.com/juju/errors"
)

// Conf is responsible for defining services. Its fields
// represent elements of a service configuration.
type Conf struct {
	// Desc is the service's description.
	Desc string
	// After lists units that must be started before this one.
	After []string
	// Env holds the environment variables that will be set when the command runs.
	Env map[string]string
	// ExecStart is the command (with arguments) that will be run.
	// The command will be restarted if it exits with a non-zero exit code.
	ExecStart string
	// User and Group the command runs as.
	User  string
	Group string
	// WorkingDir is the directory the command runs in.
	WorkingDir string
	// Restart is the systemd restart policy; "on-failure" when empty.
	Restart string
}

// IsZero determines whether or not the conf is a zero value.
func (c Conf) IsZero() bool {
	return c.Desc == "" && c.ExecStart == "" && len(c.Env) == 0 && c.User == ""
}

// Validate checks the conf describes a runnable service.
func (c Conf) Validate() error {
	if c.Desc == "" {
		return errors.NotValidf("missing Desc")
	}
	if c.ExecStart == "" {
		return errors.NotValidf("missing ExecStart")
	}
	return nil
}

// Service is the base type for application.Service implementations.
type Service struct {
	// Name is the name of the service.
	Name string
	// Conf holds the info used to build an init system conf.
	Conf Conf
}

// NoConf checks whether or not Conf has been set.
func (s Service) NoConf() bool {
	return s.Conf.IsZero()
}
