// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd_test

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/testing"

	"github.com/juju/documize-charm/service/systemd"
)

type StubDbusAPI struct {
	*testing.Stub

	Units []dbus.UnitStatus
}

func (fda *StubDbusAPI) AddUnit(name, desc, status string) {
	active := ""
	load := "loaded"
	if status == "error" {
		load = status
	} else {
		active = status
	}

	unit := dbus.UnitStatus{
		Name:        name,
		Description: desc,
		ActiveState: active,
		LoadState:   load,
	}
	fda.Units = append(fda.Units, unit)
}

func (fda *StubDbusAPI) Factory() systemd.DBusAPIFactory {
	return func(context.Context) (systemd.DBusAPI, error) {
		fda.Stub.AddCall("Connect")
		if err := fda.NextErr(); err != nil {
			return nil, err
		}
		return fda, nil
	}
}

func (fda *StubDbusAPI) ListUnitsByNamesContext(_ context.Context, units []string) ([]dbus.UnitStatus, error) {
	fda.Stub.AddCall("ListUnitsByNames", units)

	var found []dbus.UnitStatus
	for _, u := range fda.Units {
		for _, name := range units {
			if u.Name == name {
				found = append(found, u)
			}
		}
	}
	return found, fda.NextErr()
}

func (fda *StubDbusAPI) StartUnitContext(_ context.Context, name string, mode string, _ chan<- string) (int, error) {
	fda.Stub.AddCall("StartUnit", name, mode)

	return 0, fda.NextErr()
}

func (fda *StubDbusAPI) RestartUnitContext(_ context.Context, name string, mode string, _ chan<- string) (int, error) {
	fda.Stub.AddCall("RestartUnit", name, mode)

	return 0, fda.NextErr()
}

func (fda *StubDbusAPI) ReloadContext(context.Context) error {
	fda.Stub.AddCall("Reload")

	return fda.NextErr()
}

func (fda *StubDbusAPI) EnableUnitFilesContext(_ context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error) {
	fda.Stub.AddCall("EnableUnitFiles", files, runtime, force)

	return false, nil, fda.NextErr()
}

func (fda *StubDbusAPI) Close() {
	fda.Stub.AddCall("Close")

	fda.Stub.NextErr() // We don't return the error (just pop it off).
}
