// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reactive

import (
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// HookPrefix prefixes the transient flag naming the hook being dispatched.
const HookPrefix = "hook."

// Triggers names transient flags. An entry ending in "." matches every
// flag with that prefix.
type Triggers []string

// Match reports whether name is one of the triggers.
func (t Triggers) Match(name string) bool {
	for _, trigger := range t {
		if name == trigger {
			return true
		}
		if strings.HasSuffix(trigger, ".") && strings.HasPrefix(name, trigger) {
			return true
		}
	}
	return false
}

// KV is the key/value data stored alongside the flags. Writes are
// committed together with the flags at the end of a successful dispatch.
type KV interface {
	Get(key string, v interface{}) (bool, error)
	Put(key string, v interface{}) error
	Delete(key string)
}

// State is the in-memory flag set for a single dispatch.
type State struct {
	hook      string
	flags     set.Strings
	transient set.Strings
	kv        KV
}

// NewState returns a State seeded with the persisted flags. Flags
// matching triggers never outlive a dispatch, so any found among the
// persisted flags are dropped.
func NewState(hook string, flags set.Strings, kv KV, triggers Triggers) *State {
	st := &State{
		hook:      hook,
		flags:     set.NewStrings(),
		transient: set.NewStrings(),
		kv:        kv,
	}
	for _, name := range flags.SortedValues() {
		if triggers.Match(name) {
			logger.Warningf("dropping persisted trigger flag %q", name)
			continue
		}
		st.flags.Add(name)
	}
	return st
}

// Hook returns the name of the hook being dispatched.
func (s *State) Hook() string {
	return s.hook
}

// IsSet reports whether the flag is present.
func (s *State) IsSet(name string) bool {
	return s.flags.Contains(name)
}

// Set adds a persistent flag.
func (s *State) Set(name string) {
	s.flags.Add(name)
	s.transient.Remove(name)
}

// SetTransient adds a flag that lives only until the end of the dispatch.
func (s *State) SetTransient(name string) {
	s.flags.Add(name)
	s.transient.Add(name)
}

// Clear removes a flag.
func (s *State) Clear(name string) {
	s.flags.Remove(name)
	s.transient.Remove(name)
}

// Toggle sets or clears name according to on.
func (s *State) Toggle(name string, on bool) {
	if on {
		s.Set(name)
	} else {
		s.Clear(name)
	}
}

// Flags returns a copy of the current flags.
func (s *State) Flags() set.Strings {
	return set.NewStrings(s.flags.Values()...)
}

// Persistent returns the flags that will be committed.
func (s *State) Persistent() set.Strings {
	return s.flags.Difference(s.transient)
}

// KV returns the key/value data for this dispatch.
func (s *State) KV() KV {
	return s.kv
}

// Scope is the view of the State handed to a firing handler. It only
// permits the mutations the handler declared.
type Scope struct {
	state   *State
	handler *Handler
	err     error
}

func newScope(st *State, h *Handler) *Scope {
	return &Scope{state: st, handler: h}
}

// Handler returns the name of the firing handler.
func (sc *Scope) Handler() string {
	return sc.handler.Name
}

// Hook returns the name of the hook being dispatched.
func (sc *Scope) Hook() string {
	return sc.state.hook
}

// IsSet reports whether the flag is present.
func (sc *Scope) IsSet(name string) bool {
	return sc.state.IsSet(name)
}

// Flags returns a copy of the current flags.
func (sc *Scope) Flags() set.Strings {
	return sc.state.Flags()
}

// KV returns the key/value data for this dispatch.
func (sc *Scope) KV() KV {
	return sc.state.kv
}

// Set adds the named flag, which must be declared in the handler's Sets.
func (sc *Scope) Set(name string) error {
	if !sc.handler.mayMutate(name, true) {
		return sc.fail(errors.NotValidf("handler %q setting undeclared flag %q", sc.handler.Name, name))
	}
	sc.state.Set(name)
	return nil
}

// Clear removes the named flag, which must be declared in the handler's
// Clears.
func (sc *Scope) Clear(name string) error {
	if !sc.handler.mayMutate(name, false) {
		return sc.fail(errors.NotValidf("handler %q clearing undeclared flag %q", sc.handler.Name, name))
	}
	sc.state.Clear(name)
	return nil
}

func (sc *Scope) fail(err error) error {
	if sc.err == nil {
		sc.err = err
	}
	return err
}
