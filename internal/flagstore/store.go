// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package flagstore persists the unit's flags and a small amount of
// key/value data between hook invocations.
package flagstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	_ "github.com/mattn/go-sqlite3"
)

var logger = loggo.GetLogger("documize.flagstore")

// DefaultFilename is the name of the store inside the charm directory.
const DefaultFilename = ".unit-state.db"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS flag (
    name     TEXT PRIMARY KEY,
    revision INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
INSERT OR IGNORE INTO meta (key, value) VALUES ('revision', 0);
`

// Store is a sqlite backed flag and key/value store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens, creating if needed, the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, errors.Annotatef(err, "opening flag store %q", path)
	}
	// A single connection serialises every transaction on this handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "initialising flag store %q", path)
	}
	logger.Tracef("opened flag store %q", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.Trace(s.db.Close())
}

// Path returns the location of the store.
func (s *Store) Path() string {
	return s.path
}

// Flags returns the currently persisted flags.
func (s *Store) Flags(ctx context.Context) (set.Strings, error) {
	var flags set.Strings
	err := s.Update(ctx, func(txn *Txn) error {
		flags = txn.Flags()
		return nil
	})
	return flags, errors.Trace(err)
}

// Revision returns the store revision, bumped on every flag change.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&rev)
	return rev, errors.Trace(err)
}

// Update runs f inside a single transaction holding the current flags.
// Changes made through the Txn are written only if f returns nil.
func (s *Store) Update(ctx context.Context, f func(*Txn) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "starting flag store transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txn, err := loadTxn(ctx, tx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := f(txn); err != nil {
		return errors.Trace(err)
	}
	if err := txn.flush(ctx, tx); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(tx.Commit(), "committing flag store transaction")
}

// Txn is a read-modify-write view of the store.
type Txn struct {
	flags    map[string]int64
	revision int64

	setFlags   set.Strings
	clearFlags set.Strings
	kv         map[string]string
	kvDirty    map[string]bool
}

func loadTxn(ctx context.Context, tx *sql.Tx) (*Txn, error) {
	txn := &Txn{
		flags:      make(map[string]int64),
		setFlags:   set.NewStrings(),
		clearFlags: set.NewStrings(),
		kv:         make(map[string]string),
		kvDirty:    make(map[string]bool),
	}
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&txn.revision); err != nil {
		return nil, errors.Annotate(err, "reading store revision")
	}
	rows, err := tx.QueryContext(ctx, `SELECT name, revision FROM flag`)
	if err != nil {
		return nil, errors.Annotate(err, "reading flags")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			rev  int64
		)
		if err := rows.Scan(&name, &rev); err != nil {
			return nil, errors.Trace(err)
		}
		txn.flags[name] = rev
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	kvRows, err := tx.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, errors.Annotate(err, "reading key/value data")
	}
	defer kvRows.Close()
	for kvRows.Next() {
		var key, value string
		if err := kvRows.Scan(&key, &value); err != nil {
			return nil, errors.Trace(err)
		}
		txn.kv[key] = value
	}
	return txn, errors.Trace(kvRows.Err())
}

// Flags returns the flags as seen by this transaction.
func (t *Txn) Flags() set.Strings {
	out := set.NewStrings()
	for name := range t.flags {
		out.Add(name)
	}
	return out
}

// IsSet reports whether the named flag is present.
func (t *Txn) IsSet(name string) bool {
	_, ok := t.flags[name]
	return ok
}

// Set adds the named flag. Setting a present flag is a no-op.
func (t *Txn) Set(name string) {
	if t.IsSet(name) {
		return
	}
	t.revision++
	t.flags[name] = t.revision
	t.clearFlags.Remove(name)
	t.setFlags.Add(name)
}

// Clear removes the named flag. Clearing an absent flag is a no-op.
func (t *Txn) Clear(name string) {
	if !t.IsSet(name) {
		return
	}
	t.revision++
	delete(t.flags, name)
	t.setFlags.Remove(name)
	t.clearFlags.Add(name)
}

// Replace makes the flag set equal to flags.
func (t *Txn) Replace(flags set.Strings) {
	for name := range t.flags {
		if !flags.Contains(name) {
			t.Clear(name)
		}
	}
	for _, name := range flags.SortedValues() {
		t.Set(name)
	}
}

// Get decodes the JSON value stored under key into v. It reports whether
// the key was present.
func (t *Txn) Get(key string, v interface{}) (bool, error) {
	raw, ok := t.kv[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, errors.Annotatef(err, "decoding %q", key)
	}
	return true, nil
}

// Put stores v under key as JSON.
func (t *Txn) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Annotatef(err, "encoding %q", key)
	}
	t.kv[key] = string(data)
	t.kvDirty[key] = true
	return nil
}

// Delete removes key.
func (t *Txn) Delete(key string) {
	if _, ok := t.kv[key]; !ok {
		return
	}
	delete(t.kv, key)
	t.kvDirty[key] = true
}

func (t *Txn) flush(ctx context.Context, tx *sql.Tx) error {
	for _, name := range t.clearFlags.SortedValues() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM flag WHERE name = ?`, name); err != nil {
			return errors.Annotatef(err, "clearing flag %q", name)
		}
	}
	for _, name := range t.setFlags.SortedValues() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flag (name, revision) VALUES (?, ?)
             ON CONFLICT(name) DO UPDATE SET revision = excluded.revision`,
			name, t.flags[name]); err != nil {
			return errors.Annotatef(err, "setting flag %q", name)
		}
	}
	for key := range t.kvDirty {
		value, ok := t.kv[key]
		var err error
		if ok {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO kv (key, value) VALUES (?, ?)
                 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				key, value)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		}
		if err != nil {
			return errors.Annotatef(err, "writing %q", key)
		}
	}
	_, err := tx.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'revision'`, t.revision)
	return errors.Annotate(err, "writing store revision")
}
