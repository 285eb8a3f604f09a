// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging routes loggo output to the unit's debug-log and to a
// rotating file on the unit's machine.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

const (
	// DefaultLogFile is where the charm keeps its own log.
	DefaultLogFile = "/var/log/juju/documize-charm.log"

	jujuLogWriterName = "juju-log"
	fileWriterName    = "file"
	jujuLogTimeout    = 10 * time.Second
)

// JujuLogger sends a message to the unit's debug-log.
type JujuLogger interface {
	Log(ctx context.Context, level, msg string) error
}

// JujuLogWriter is a loggo.Writer forwarding entries to juju-log.
type JujuLogWriter struct {
	logger JujuLogger

	mu      sync.Mutex
	writing bool
}

// NewJujuLogWriter returns a writer forwarding to logger.
func NewJujuLogWriter(logger JujuLogger) *JujuLogWriter {
	return &JujuLogWriter{logger: logger}
}

// Write implements loggo.Writer. Entries logged while forwarding an
// earlier entry are dropped, as juju-log itself runs through a logged
// command runner.
func (w *JujuLogWriter) Write(entry loggo.Entry) {
	w.mu.Lock()
	if w.writing {
		w.mu.Unlock()
		return
	}
	w.writing = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.writing = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jujuLogTimeout)
	defer cancel()
	msg := fmt.Sprintf("%s %s", entry.Module, entry.Message)
	if err := w.logger.Log(ctx, entry.Level.String(), msg); err != nil {
		fmt.Fprintf(os.Stderr, "cannot forward log entry to juju-log: %v\n", err)
	}
}

// NewFileWriter returns a loggo.Writer appending to a rotating log file.
func NewFileWriter(filename string) loggo.Writer {
	return loggo.NewSimpleWriter(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    30, // megabytes
		MaxBackups: 2,
		Compress:   true,
	}, loggo.DefaultFormatter)
}

// Config describes where log output goes.
type Config struct {
	// Level is a loggo logging config string such as
	// "<root>=INFO;documize.reactive=DEBUG".
	Level string

	// JujuLog, when set, receives INFO and above.
	JujuLog JujuLogger

	// LogFile, when set and writable, receives everything that passes
	// the configured levels.
	LogFile string
}

// Setup installs the writers described by config.
func Setup(config Config) error {
	if config.Level != "" {
		if err := loggo.ConfigureLoggers(config.Level); err != nil {
			return errors.Annotatef(err, "configuring loggers %q", config.Level)
		}
	}
	if config.JujuLog != nil {
		_, _ = loggo.RemoveWriter(jujuLogWriterName)
		writer := loggo.NewMinimumLevelWriter(NewJujuLogWriter(config.JujuLog), loggo.INFO)
		if err := loggo.RegisterWriter(jujuLogWriterName, writer); err != nil {
			return errors.Trace(err)
		}
	}
	if config.LogFile != "" {
		if err := primeLogFile(config.LogFile); err != nil {
			// Logging to the debug-log still works, so carry on.
			loggo.GetLogger("documize.logging").Warningf("not logging to %q: %v", config.LogFile, err)
			return nil
		}
		_, _ = loggo.RemoveWriter(fileWriterName)
		if err := loggo.RegisterWriter(fileWriterName, NewFileWriter(config.LogFile)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// primeLogFile checks the log file can be created and appended to.
func primeLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(f.Close())
}
