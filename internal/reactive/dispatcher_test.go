// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reactive_test

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/documize-charm/internal/flagstore"
	"github.com/juju/documize-charm/internal/reactive"
)

type dispatcherSuite struct {
	testing.IsolationSuite

	store *flagstore.Store
}

var _ = gc.Suite(&dispatcherSuite{})

func (s *dispatcherSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	store, err := flagstore.Open(filepath.Join(c.MkDir(), flagstore.DefaultFilename))
	c.Assert(err, jc.ErrorIsNil)
	s.store = store
	s.AddCleanup(func(*gc.C) { _ = store.Close() })
}

func (s *dispatcherSuite) newDispatcher(c *gc.C, config reactive.Config) *reactive.Dispatcher {
	config.Store = s.store
	d, err := reactive.NewDispatcher(config)
	c.Assert(err, jc.ErrorIsNil)
	return d
}

func (s *dispatcherSuite) persisted(c *gc.C) []string {
	flags, err := s.store.Flags(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	return flags.SortedValues()
}

func setter(flag string) reactive.Body {
	return func(_ context.Context, sc *reactive.Scope) error {
		return sc.Set(flag)
	}
}

func noop(context.Context, *reactive.Scope) error { return nil }

func (s *dispatcherSuite) TestChainConvergesInOneDispatch(c *gc.C) {
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "second",
			Guard: reactive.Guard{When: []string{"a"}, WhenNot: []string{"b"}},
			Sets:  []string{"b"},
			Body:  setter("b"),
		}, {
			Name:  "first",
			Guard: reactive.Guard{WhenNot: []string{"a"}},
			Sets:  []string{"a"},
			Body:  setter("a"),
		}},
	})
	result, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Fired, jc.DeepEquals, []string{"first", "second"})
	c.Assert(result.Passes, gc.Equals, 3)
	c.Assert(result.Flags.SortedValues(), jc.DeepEquals, []string{"a", "b"})
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"a", "b"})
}

func (s *dispatcherSuite) TestAdvanceFiresOncePerDispatchWhileGuardHolds(c *gc.C) {
	var calls int
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "persist-status",
			Guard: reactive.Guard{When: []string{"ready"}},
			Body: func(context.Context, *reactive.Scope) error {
				calls++
				return nil
			},
		}, {
			Name:  "ready",
			Guard: reactive.Guard{WhenNot: []string{"ready"}},
			Sets:  []string{"ready"},
			Body:  setter("ready"),
		}},
	})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(calls, gc.Equals, 1)

	_, err = d.Dispatch(context.Background(), "update-status")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(calls, gc.Equals, 2)
}

func (s *dispatcherSuite) TestResetFiresOnceAndRearmsAdvance(c *gc.C) {
	var configured int
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "configure",
			Guard: reactive.Guard{WhenNot: []string{"web"}},
			Sets:  []string{"web"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				configured++
				return sc.Set("web")
			},
		}, {
			Name:   "config-changed",
			Kind:   reactive.Reset,
			Guard:  reactive.Guard{When: []string{"web"}, WhenAny: []string{"hook.config-changed"}},
			Clears: []string{"web"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				return sc.Clear("web")
			},
		}},
	})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(configured, gc.Equals, 1)

	result, err := d.Dispatch(context.Background(), "config-changed")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Fired, jc.DeepEquals, []string{"config-changed", "configure"})
	c.Assert(configured, gc.Equals, 2)
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"web"})
}

func (s *dispatcherSuite) TestTransientFlagsAreNotCommitted(c *gc.C) {
	var seen bool
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "on-upgrade",
			Guard: reactive.Guard{When: []string{"hook.upgrade-charm"}},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				seen = sc.Hook() == "upgrade-charm"
				return nil
			},
		}},
	})
	_, err := d.Dispatch(context.Background(), "upgrade-charm")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(seen, jc.IsTrue)
	c.Assert(s.persisted(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestUndeclaredMutationFails(c *gc.C) {
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "sneaky",
			Guard: reactive.Guard{WhenNot: []string{"a"}},
			Sets:  []string{"a"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				_ = sc.Set("a")
				// The error is ignored on purpose; the dispatcher still fails.
				_ = sc.Set("b")
				return nil
			},
		}},
	})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Assert(err, gc.ErrorMatches, `.*handler "sneaky" setting undeclared flag "b".*`)
	c.Assert(s.persisted(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestFailingHandlerCommitsNothing(c *gc.C) {
	boom := errors.New("boom")
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "install",
			Guard: reactive.Guard{WhenNot: []string{"installed"}},
			Sets:  []string{"installed"},
			Body:  setter("installed"),
		}, {
			Name:  "create-db",
			Guard: reactive.Guard{When: []string{"installed"}},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				return sc.KV().Put("half-done", true)
			},
		}, {
			Name:  "fail",
			Guard: reactive.Guard{When: []string{"installed"}},
			Body: func(context.Context, *reactive.Scope) error {
				return boom
			},
		}},
	})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIs, boom)
	c.Assert(err, gc.ErrorMatches, `dispatching "install": handler "fail": boom`)
	c.Assert(s.persisted(c), gc.HasLen, 0)

	err = s.store.Update(context.Background(), func(txn *flagstore.Txn) error {
		var v bool
		found, err := txn.Get("half-done", &v)
		c.Check(found, jc.IsFalse)
		return err
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *dispatcherSuite) TestResetIgnoresFlagsSetDuringDispatch(c *gc.C) {
	var on int
	d := s.newDispatcher(c, reactive.Config{
		Handlers: []reactive.Handler{{
			Name:  "on",
			Guard: reactive.Guard{WhenNot: []string{"x"}},
			Sets:  []string{"x"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				on++
				return sc.Set("x")
			},
		}, {
			Name:   "off",
			Kind:   reactive.Reset,
			Guard:  reactive.Guard{When: []string{"x"}, WhenAny: []string{"hook.install"}},
			Clears: []string{"x"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				return sc.Clear("x")
			},
		}},
	})
	result, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Fired, jc.DeepEquals, []string{"on"})
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"x"})

	result, err = d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Fired, jc.DeepEquals, []string{"off", "on"})
	c.Assert(on, gc.Equals, 2)
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"x"})
}

func (s *dispatcherSuite) TestTooManyPasses(c *gc.C) {
	// Declared in reverse dependency order, each handler needs its own pass.
	handlers := []reactive.Handler{{
		Name:  "c",
		Guard: reactive.Guard{When: []string{"b"}, WhenNot: []string{"c"}},
		Sets:  []string{"c"},
		Body:  setter("c"),
	}, {
		Name:  "b",
		Guard: reactive.Guard{When: []string{"a"}, WhenNot: []string{"b"}},
		Sets:  []string{"b"},
		Body:  setter("b"),
	}, {
		Name:  "a",
		Guard: reactive.Guard{WhenNot: []string{"a"}},
		Sets:  []string{"a"},
		Body:  setter("a"),
	}}
	d := s.newDispatcher(c, reactive.Config{MaxPasses: 3, Handlers: handlers})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIs, reactive.ErrTooManyPasses)
	c.Assert(s.persisted(c), gc.HasLen, 0)

	d = s.newDispatcher(c, reactive.Config{MaxPasses: 4, Handlers: handlers})
	result, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Passes, gc.Equals, 4)
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"a", "b", "c"})
}

type countingProvider struct {
	flag      string
	committed bool
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Refresh(_ context.Context, st *reactive.State) error {
	st.SetTransient(p.flag)
	return nil
}

func (p *countingProvider) Commit(_ context.Context, st *reactive.State) error {
	p.committed = true
	return st.KV().Put("snapshot", p.flag)
}

func (s *dispatcherSuite) TestProvidersAndAfterDispatch(c *gc.C) {
	provider := &countingProvider{flag: "config.changed.port"}
	var after []string
	d := s.newDispatcher(c, reactive.Config{
		Providers: []reactive.Provider{provider},
		Handlers: []reactive.Handler{{
			Name:  "rerender",
			Guard: reactive.Guard{When: []string{"config.changed.port"}},
			Body:  noop,
		}},
		AfterDispatch: []reactive.AfterFunc{
			func(_ context.Context, st *reactive.State) error {
				after = st.Flags().SortedValues()
				return nil
			},
		},
	})
	result, err := d.Dispatch(context.Background(), "config-changed")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(result.Fired, jc.DeepEquals, []string{"rerender"})
	c.Assert(after, jc.DeepEquals, []string{"config.changed.port", "hook.config-changed"})
	c.Assert(provider.committed, jc.IsTrue)
	c.Assert(s.persisted(c), gc.HasLen, 0)
}

func (s *dispatcherSuite) TestLock(c *gc.C) {
	d := s.newDispatcher(c, reactive.Config{
		LockName: reactive.LockName(fmt.Sprintf("test-%d/0", rand.Int63())),
		Clock:    clock.WallClock,
		Handlers: []reactive.Handler{{
			Name:  "a",
			Guard: reactive.Guard{WhenNot: []string{"a"}},
			Sets:  []string{"a"},
			Body:  setter("a"),
		}},
	})
	_, err := d.Dispatch(context.Background(), "install")
	c.Assert(err, jc.ErrorIsNil)
	_, err = d.Dispatch(context.Background(), "update-status")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *dispatcherSuite) TestLockName(c *gc.C) {
	c.Assert(reactive.LockName("documize/0"), gc.Equals, "documize-charm-documize-0")
	long := reactive.LockName("a-really-long-application-name-for-documize/12")
	c.Assert(long, gc.HasLen, 40)
}

// TestGuardSoundness checks that across random flag mutation sequences no
// body runs unless its full guard holds at the moment it runs.
func (s *dispatcherSuite) TestGuardSoundness(c *gc.C) {
	rng := rand.New(rand.NewSource(42))
	external := []string{"f0", "f1", "f2", "f3", "f4"}

	pick := func(from []string, n int) []string {
		var out []string
		for _, f := range from {
			if rng.Intn(len(from)) < n {
				out = append(out, f)
			}
		}
		return out
	}

	// Handler i only sets s<i> and only waits on external flags and the
	// outputs of earlier handlers, so the table is acyclic.
	var (
		handlers []reactive.Handler
		outputs  []string
	)
	for i := 0; i < 8; i++ {
		own := fmt.Sprintf("s%d", i)
		available := append(append([]string(nil), external...), outputs...)
		guard := reactive.Guard{
			When:    pick(available, 1),
			WhenAny: pick(available, 2),
			WhenNot: append(pick(available, 1), own),
		}
		handlers = append(handlers, reactive.Handler{
			Name:  fmt.Sprintf("h%d", i),
			Guard: guard,
			Sets:  []string{own},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				c.Check(guard.Holds(sc.Flags()), jc.IsTrue)
				return sc.Set(own)
			},
		})
		outputs = append(outputs, own)
	}
	d := s.newDispatcher(c, reactive.Config{Handlers: handlers})

	all := append(append([]string(nil), external...), outputs...)
	for round := 0; round < 50; round++ {
		err := s.store.Update(context.Background(), func(txn *flagstore.Txn) error {
			txn.Replace(set.NewStrings(pick(all, 3)...))
			return nil
		})
		c.Assert(err, jc.ErrorIsNil)
		_, err = d.Dispatch(context.Background(), "update-status")
		c.Assert(err, jc.ErrorIsNil)
	}
}

type certProvider struct{}

func (certProvider) Name() string { return "certificates" }

func (certProvider) Refresh(context.Context, *reactive.State) error { return nil }

func (certProvider) Triggers() reactive.Triggers {
	return reactive.Triggers{"cert.changed", "config.changed."}
}

func (s *dispatcherSuite) TestTriggers(c *gc.C) {
	config := reactive.Config{Providers: []reactive.Provider{certProvider{}}}
	triggers := config.Triggers()
	c.Check(triggers.Match("hook.install"), jc.IsTrue)
	c.Check(triggers.Match("cert.changed"), jc.IsTrue)
	c.Check(triggers.Match("config.changed.port"), jc.IsTrue)
	c.Check(triggers.Match("config.changed"), jc.IsFalse)
	c.Check(triggers.Match("cert.changed.other"), jc.IsFalse)
	c.Check(triggers.Match("web"), jc.IsFalse)
}

func (s *dispatcherSuite) TestPersistedTriggersAreDropped(c *gc.C) {
	err := s.store.Update(context.Background(), func(txn *flagstore.Txn) error {
		for _, name := range []string{"web", "cert.changed", "config.changed.port", "hook.install"} {
			txn.Set(name)
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)

	var resets int
	d := s.newDispatcher(c, reactive.Config{
		Providers: []reactive.Provider{certProvider{}},
		Handlers: []reactive.Handler{{
			Name:  "configure",
			Guard: reactive.Guard{WhenNot: []string{"web"}},
			Sets:  []string{"web"},
			Body:  setter("web"),
		}, {
			Name:   "cert-changed",
			Kind:   reactive.Reset,
			Guard:  reactive.Guard{When: []string{"web"}, WhenAny: []string{"cert.changed"}},
			Clears: []string{"web"},
			Body: func(_ context.Context, sc *reactive.Scope) error {
				resets++
				return sc.Clear("web")
			},
		}},
	})
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(context.Background(), "update-status")
		c.Assert(err, jc.ErrorIsNil)
		c.Assert(result.Fired, gc.HasLen, 0)
	}
	c.Assert(resets, gc.Equals, 0)
	c.Assert(s.persisted(c), jc.DeepEquals, []string{"web"})
}
