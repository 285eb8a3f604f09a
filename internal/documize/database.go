// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package documize

import (
	"context"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/juju/documize-charm/core/status"
	"github.com/juju/documize-charm/internal/reactive"
	"github.com/juju/documize-charm/service/common"
)

const mysqlPort = "3306"

func (c *Charm) createDB(ctx context.Context, sc *reactive.Scope) error {
	if err := c.setStatus(ctx, status.Maintenance, "Creating MySQL database"); err != nil {
		return errors.Trace(err)
	}
	addr, err := c.config.Tools.PrivateAddress(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := c.database.Configure(ctx, dbName, systemUser, addr, dbPrefix); err != nil {
		return errors.Trace(err)
	}
	if err := c.setStatus(ctx, status.Active, "Documize db created"); err != nil {
		return errors.Trace(err)
	}
	return sc.Set(DBCreatedFlag)
}

func (c *Charm) writeServiceUnit(ctx context.Context, sc *reactive.Scope) error {
	salt, err := ensureSalt(sc.KV())
	if err != nil {
		return errors.Trace(err)
	}
	conf := c.serviceConf(salt)
	svc, err := c.config.NewService(ServiceName, conf)
	if err != nil {
		return errors.Trace(err)
	}
	if err := svc.WriteUnit(ctx); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("wrote %s service connecting to %s", ServiceName, c.database.DBHost())
	return sc.Set(SystemdAvailableFlag)
}

// serviceConf describes the Documize service for the credentials the
// database relation currently publishes.
func (c *Charm) serviceConf(salt string) common.Conf {
	return common.Conf{
		Desc:  "Documize",
		After: []string{"network.target"},
		Env: map[string]string{
			"DOCUMIZEDB":     c.dataSourceName(),
			"DOCUMIZEDBTYPE": "mysql",
			"DOCUMIZEPORT":   strconv.Itoa(UpstreamPort),
			"DOCUMIZESALT":   salt,
		},
		ExecStart:  c.config.Paths.Binary(),
		User:       systemUser,
		Group:      systemGroup,
		WorkingDir: c.config.Paths.InstallDir,
		Restart:    "always",
	}
}

// dataSourceName returns the go-sql-driver DSN Documize connects with.
func (c *Charm) dataSourceName() string {
	host := c.database.DBHost()
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, mysqlPort)
	}
	database := c.database.Database(dbPrefix)
	if database == "" {
		database = dbName
	}
	user := c.database.Username(dbPrefix)
	if user == "" {
		user = systemUser
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = c.database.Password(dbPrefix)
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// ensureSalt returns the unit's Documize salt, generating it on first use.
func ensureSalt(kv reactive.KV) (string, error) {
	var salt string
	found, err := kv.Get(saltKey, &salt)
	if err != nil {
		return "", errors.Trace(err)
	}
	if found && salt != "" {
		return salt, nil
	}
	if salt, err = utils.RandomPassword(); err != nil {
		return "", errors.Annotate(err, "generating salt")
	}
	if err := kv.Put(saltKey, salt); err != nil {
		return "", errors.Trace(err)
	}
	return salt, nil
}
