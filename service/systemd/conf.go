// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/juju/errors"

	"github.com/juju/documize-charm/service/common"
)

// serialize returns the data that should be written to disk for the
// provided Conf, rendered in the systemd unit file format.
func serialize(conf common.Conf) ([]byte, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var unitOptions []*unit.UnitOption
	unitOptions = append(unitOptions, unit.NewUnitOption("Unit", "Description", conf.Desc))
	if len(conf.After) > 0 {
		unitOptions = append(unitOptions, unit.NewUnitOption("Unit", "After", strings.Join(conf.After, " ")))
	}
	unitOptions = append(unitOptions, serializeService(conf)...)
	unitOptions = append(unitOptions, unit.NewUnitOption("Install", "WantedBy", "multi-user.target"))

	data, err := io.ReadAll(unit.Serialize(unitOptions))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

func serializeService(conf common.Conf) []*unit.UnitOption {
	var unitOptions []*unit.UnitOption
	if conf.User != "" {
		unitOptions = append(unitOptions, unit.NewUnitOption("Service", "User", conf.User))
	}
	if conf.Group != "" {
		unitOptions = append(unitOptions, unit.NewUnitOption("Service", "Group", conf.Group))
	}
	if conf.WorkingDir != "" {
		unitOptions = append(unitOptions, unit.NewUnitOption("Service", "WorkingDirectory", conf.WorkingDir))
	}

	var keys []string
	for k := range conf.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		unitOptions = append(unitOptions, unit.NewUnitOption(
			"Service", "Environment", strconv.Quote(k+"="+conf.Env[k])))
	}

	unitOptions = append(unitOptions, unit.NewUnitOption("Service", "ExecStart", conf.ExecStart))
	restart := conf.Restart
	if restart == "" {
		restart = "on-failure"
	}
	unitOptions = append(unitOptions, unit.NewUnitOption("Service", "Restart", restart))
	return unitOptions
}
