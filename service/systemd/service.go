// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd

import (
	"context"
	"os"
	"path"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/juju/documize-charm/service/common"
)

const (
	EtcSystemdDir = "/etc/systemd/system"
)

var logger = loggo.GetLogger("documize.service.systemd")

// DBusAPI describes the systemd dbus operations used to control a
// service.
type DBusAPI interface {
	Close()
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
}

// Type alias for a DBusAPI factory method.
type DBusAPIFactory = func(ctx context.Context) (DBusAPI, error)

// FileSystemOps abstracts the file operations used on unit files.
type FileSystemOps interface {
	Remove(name string) error
	WriteFile(fileName string, data []byte, perm os.FileMode) error
}

type fileSystemOps struct{}

// Remove deletes name, ignoring a missing file.
func (fileSystemOps) Remove(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}

// WriteFile replaces fileName with data.
func (fileSystemOps) WriteFile(fileName string, data []byte, perm os.FileMode) error {
	return errors.Trace(utils.AtomicWriteFile(fileName, data, perm))
}

// NewDBusAPI connects to the system dbus.
var NewDBusAPI = func(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

var newChan = func() chan string {
	return make(chan string, 1)
}

var isRunning = IsRunning

// Service provides visibility into and control over a systemd service.
type Service struct {
	common.Service

	ConfName string
	UnitName string
	DirName  string

	fileOps FileSystemOps
	newDBus DBusAPIFactory
}

// NewServiceInDir returns a systemd service reference talking to the
// system bus, with the unit file kept in dataDir. conf may be empty for
// services whose unit file is owned by a package, such as nginx.
func NewServiceInDir(name string, conf common.Conf, dataDir string) (*Service, error) {
	svc, err := NewService(name, conf, dataDir, NewDBusAPI, fileSystemOps{})
	return svc, errors.Trace(err)
}

// NewService returns a new reference to a systemd service.
func NewService(
	name string, conf common.Conf, dataDir string, newDBus DBusAPIFactory, fileOps FileSystemOps,
) (*Service, error) {
	confName := name + ".service"
	service := &Service{
		Service: common.Service{
			Name: name,
			Conf: conf,
		},
		ConfName: confName,
		UnitName: confName,
		DirName:  dataDir,
		fileOps:  fileOps,
		newDBus:  newDBus,
	}
	if !conf.IsZero() {
		if err := conf.Validate(); err != nil {
			return nil, service.errorf(err, "invalid conf")
		}
	}
	return service, nil
}

func (s *Service) errorf(err error, msg string, args ...interface{}) error {
	msg += " for service %q"
	args = append(args, s.Service.Name)
	if err == nil {
		err = errors.Errorf(msg, args...)
	} else {
		err = errors.Annotatef(err, msg, args...)
	}
	err.(*errors.Err).SetLocation(1)
	logger.Errorf("%v", err)
	logger.Debugf("stack trace:\n%s", errors.ErrorStack(err))
	return err
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.Service.Name
}

// UnitPath returns the location of the service's unit file.
func (s *Service) UnitPath() string {
	return path.Join(s.DirName, s.ConfName)
}

// Serialize renders the unit file for the service.
func (s *Service) Serialize() ([]byte, error) {
	data, err := serialize(s.Service.Conf)
	if err != nil {
		return nil, s.errorf(err, "failed to serialize conf")
	}
	return data, nil
}

// WriteUnit replaces the service's unit file and has systemd reload it.
func (s *Service) WriteUnit(ctx context.Context) error {
	if s.NoConf() {
		return s.errorf(nil, "missing conf")
	}
	data, err := s.Serialize()
	if err != nil {
		return errors.Trace(err)
	}

	filename := s.UnitPath()
	if err := s.fileOps.Remove(filename); err != nil {
		return s.errorf(err, "failed to remove stale unit file %q", filename)
	}
	if err := s.fileOps.WriteFile(filename, data, 0644); err != nil {
		return s.errorf(err, "failed to write unit file %q", filename)
	}
	logger.Debugf("wrote %q", filename)

	// If systemd is not the running init system,
	// then do not attempt to reload or enable the unit.
	if !isRunning() {
		return nil
	}

	conn, err := s.newConn(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return s.errorf(err, "dbus daemon reload request failed")
	}
	const runtime, force = false, true
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{filename}, runtime, force); err != nil {
		return s.errorf(err, "dbus enable request failed")
	}
	return nil
}

func (s *Service) newConn(ctx context.Context) (DBusAPI, error) {
	conn, err := s.newDBus(ctx)
	if err != nil {
		logger.Errorf("failed to connect to dbus for service %q: %v", s.Service.Name, err)
	}
	return conn, err
}

func (s *Service) running(ctx context.Context, conn DBusAPI) (bool, error) {
	units, err := conn.ListUnitsByNamesContext(ctx, []string{s.UnitName})
	if err != nil {
		return false, s.errorf(err, "failed to query services from dbus")
	}
	for _, unit := range units {
		if unit.Name == s.UnitName {
			return unit.LoadState == "loaded" && unit.ActiveState == "active", nil
		}
	}
	return false, nil
}

// StartOrRestart starts the service when it is not running and restarts
// it otherwise, so that new configuration is picked up either way.
func (s *Service) StartOrRestart(ctx context.Context) error {
	conn, err := s.newConn(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	running, err := s.running(ctx, conn)
	if err != nil {
		return errors.Trace(err)
	}

	op, call := "start", conn.StartUnitContext
	if running {
		op, call = "restart", conn.RestartUnitContext
	}
	statusCh := newChan()
	if _, err := call(ctx, s.UnitName, "replace", statusCh); err != nil {
		return s.errorf(err, "dbus %s request failed", op)
	}
	if err := s.wait(ctx, op, statusCh); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q %sed", s.Name(), op)
	return nil
}

func (s *Service) wait(ctx context.Context, op string, statusCh chan string) error {
	select {
	case status := <-statusCh:
		// See https://godoc.org/github.com/coreos/go-systemd/dbus#Conn.StartUnit
		// for the possible job results.
		if status != "done" {
			return s.errorf(nil, "failed to %s (API status %q)", op, status)
		}
		return nil
	case <-ctx.Done():
		return s.errorf(ctx.Err(), "waiting to %s", op)
	}
}
