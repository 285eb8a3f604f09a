// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reactivetesting provides helpers for testing handlers and
// providers without a flag store.
package reactivetesting

import (
	"encoding/json"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/documize-charm/internal/reactive"
)

// KV is an in-memory reactive.KV that encodes values as the flag store
// does, so values read back have their JSON types.
type KV map[string][]byte

// Get implements reactive.KV.
func (kv KV) Get(key string, v interface{}) (bool, error) {
	data, ok := kv[key]
	if !ok {
		return false, nil
	}
	return true, errors.Trace(json.Unmarshal(data, v))
}

// Put implements reactive.KV.
func (kv KV) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Trace(err)
	}
	kv[key] = data
	return nil
}

// Delete implements reactive.KV.
func (kv KV) Delete(key string) {
	delete(kv, key)
}

// NewState returns a State over an empty KV holding flags.
func NewState(hook string, flags ...string) *reactive.State {
	return reactive.NewState(hook, set.NewStrings(flags...), make(KV), nil)
}
