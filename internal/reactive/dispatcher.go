// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reactive runs a table of flag-gated handlers to a fixed point,
// once per hook invocation.
package reactive

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/mutex/v2"

	"github.com/juju/documize-charm/internal/flagstore"
)

var logger = loggo.GetLogger("documize.reactive")

const (
	// DefaultMaxPasses bounds the number of evaluation passes in a
	// single dispatch.
	DefaultMaxPasses = 64

	// ErrTooManyPasses is returned when handlers keep firing past the
	// pass limit.
	ErrTooManyPasses = errors.ConstError("handlers did not settle")

	lockDelay   = 250 * time.Millisecond
	lockTimeout = 5 * time.Minute
)

// Provider contributes flags derived from the outside world before any
// handler runs: relation state, config changes and the like.
type Provider interface {
	Name() string
	Refresh(ctx context.Context, st *State) error
}

// Triggerer is implemented by providers that raise transient flags.
type Triggerer interface {
	Triggers() Triggers
}

// Committer is implemented by providers that record data once the
// dispatch has succeeded, such as a config snapshot.
type Committer interface {
	Commit(ctx context.Context, st *State) error
}

// AfterFunc runs once the handlers have settled.
type AfterFunc func(ctx context.Context, st *State) error

// Config holds the dependencies of a Dispatcher.
type Config struct {
	Store         *flagstore.Store
	Handlers      []Handler
	Providers     []Provider
	AfterDispatch []AfterFunc

	// LockName names the machine-wide mutex held for the duration of a
	// dispatch. No lock is taken when empty.
	LockName string
	Clock    clock.Clock

	MaxPasses int
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.LockName != "" && c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.MaxPasses < 0 {
		return errors.NotValidf("negative MaxPasses")
	}
	return errors.Trace(NewGraph(c.Handlers).Validate())
}

// Triggers returns the transient flag names raised by the dispatcher
// itself and by its providers.
func (c Config) Triggers() Triggers {
	triggers := Triggers{HookPrefix}
	for _, p := range c.Providers {
		if t, ok := p.(Triggerer); ok {
			triggers = append(triggers, t.Triggers()...)
		}
	}
	return triggers
}

// Result describes a completed dispatch.
type Result struct {
	Hook   string
	Fired  []string
	Passes int
	Flags  set.Strings
}

// Dispatcher evaluates the handler table for one hook at a time.
type Dispatcher struct {
	config   Config
	triggers Triggers
}

// NewDispatcher returns a Dispatcher for a validated config.
func NewDispatcher(config Config) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.MaxPasses == 0 {
		config.MaxPasses = DefaultMaxPasses
	}
	return &Dispatcher{config: config, triggers: config.Triggers()}, nil
}

// Dispatch runs the handlers to a fixed point for the named hook and
// commits the resulting flags. Nothing is committed if any provider,
// handler or after-dispatch function fails.
func (d *Dispatcher) Dispatch(ctx context.Context, hook string) (*Result, error) {
	release, err := d.lock(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer release()

	var result *Result
	err = d.config.Store.Update(ctx, func(txn *flagstore.Txn) error {
		st := NewState(hook, txn.Flags(), txn, d.triggers)
		if hook != "" {
			st.SetTransient(HookPrefix + hook)
		}
		var err error
		if result, err = d.run(ctx, st); err != nil {
			return errors.Trace(err)
		}
		txn.Replace(st.Persistent())
		return nil
	})
	if err != nil {
		return nil, errors.Annotatef(err, "dispatching %q", hook)
	}
	logger.Debugf("hook %q settled after %d passes, fired %v", hook, result.Passes, result.Fired)
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, st *State) (*Result, error) {
	for _, p := range d.config.Providers {
		if err := p.Refresh(ctx, st); err != nil {
			return nil, errors.Annotatef(err, "refreshing %s", p.Name())
		}
	}

	result := &Result{Hook: st.Hook()}
	armed := make(map[string]bool)
	fired := set.NewStrings()
	// Resets react to the flags the hook arrived with, never to progress
	// made by advance handlers during this dispatch.
	eligible := set.NewStrings()
	for _, h := range d.config.Handlers {
		armed[h.Name] = true
		if h.Kind == Reset && h.Guard.Holds(st.flags) {
			eligible.Add(h.Name)
		}
	}

	for {
		if result.Passes == d.config.MaxPasses {
			return nil, errors.Annotatef(ErrTooManyPasses, "after %d passes", result.Passes)
		}
		result.Passes++
		progressed := false
		for i := range d.config.Handlers {
			h := &d.config.Handlers[i]
			if err := ctx.Err(); err != nil {
				return nil, errors.Trace(err)
			}
			holds := h.Guard.Holds(st.flags)
			switch h.Kind {
			case Advance:
				if !holds {
					armed[h.Name] = true
					continue
				}
				if !armed[h.Name] {
					continue
				}
				armed[h.Name] = false
			case Reset:
				if !holds || !eligible.Contains(h.Name) || fired.Contains(h.Name) {
					continue
				}
			}
			if err := d.fire(ctx, st, h); err != nil {
				return nil, errors.Trace(err)
			}
			fired.Add(h.Name)
			result.Fired = append(result.Fired, h.Name)
			progressed = true
			d.rearm(st, armed)
		}
		if !progressed {
			break
		}
	}

	for _, after := range d.config.AfterDispatch {
		if err := after(ctx, st); err != nil {
			return nil, errors.Trace(err)
		}
	}
	for _, p := range d.config.Providers {
		if c, ok := p.(Committer); ok {
			if err := c.Commit(ctx, st); err != nil {
				return nil, errors.Annotatef(err, "committing %s", p.Name())
			}
		}
	}
	result.Flags = st.Persistent()
	return result, nil
}

// rearm arms every advance handler whose guard no longer holds.
func (d *Dispatcher) rearm(st *State, armed map[string]bool) {
	for _, h := range d.config.Handlers {
		if h.Kind == Advance && !h.Guard.Holds(st.flags) {
			armed[h.Name] = true
		}
	}
}

func (d *Dispatcher) fire(ctx context.Context, st *State, h *Handler) error {
	logger.Debugf("firing %s handler %q", h.Kind, h.Name)
	sc := newScope(st, h)
	err := h.Body(ctx, sc)
	if sc.err != nil {
		return errors.Trace(sc.err)
	}
	return errors.Annotatef(err, "handler %q", h.Name)
}

func (d *Dispatcher) lock(ctx context.Context) (func(), error) {
	if d.config.LockName == "" {
		return func() {}, nil
	}
	return Lock(ctx, d.config.LockName, d.config.Clock)
}

// Lock acquires the named machine-wide mutex, waiting until it is free,
// the context is done or the lock timeout passes. The returned function
// releases it.
func Lock(ctx context.Context, name string, clock clock.Clock) (func(), error) {
	releaser, err := mutex.Acquire(mutex.Spec{
		Name:    name,
		Clock:   clock,
		Delay:   lockDelay,
		Timeout: lockTimeout,
		Cancel:  ctx.Done(),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "acquiring lock %q", name)
	}
	return releaser.Release, nil
}

// LockName returns the mutex name used to serialise dispatches for the
// given unit. Mutex names are limited to 40 characters.
func LockName(unitName string) string {
	name := "documize-charm-" + strings.ReplaceAll(unitName, "/", "-")
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}
