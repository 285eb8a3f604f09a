// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reactive

import (
	"context"
	"strings"

	"github.com/juju/collections/set"
)

// Kind distinguishes handlers that move convergence forward from handlers
// that undo earlier progress.
type Kind int

const (
	// Advance handlers fire once each time their guard becomes true.
	Advance Kind = iota

	// Reset handlers fire at most once per dispatch, only if their guard
	// held when the dispatch started, and are the only handlers allowed
	// to clear flags.
	Reset
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Advance:
		return "advance"
	case Reset:
		return "reset"
	}
	return "unknown"
}

// Guard is the flag predicate a handler waits on.
type Guard struct {
	// When lists flags that must all be present.
	When []string
	// WhenAny lists flags of which at least one must be present.
	// An empty WhenAny is ignored.
	WhenAny []string
	// WhenNot lists flags that must all be absent.
	WhenNot []string
}

// Holds reports whether the guard is satisfied by flags.
func (g Guard) Holds(flags set.Strings) bool {
	for _, f := range g.When {
		if !flags.Contains(f) {
			return false
		}
	}
	for _, f := range g.WhenNot {
		if flags.Contains(f) {
			return false
		}
	}
	if len(g.WhenAny) == 0 {
		return true
	}
	for _, f := range g.WhenAny {
		if flags.Contains(f) {
			return true
		}
	}
	return false
}

// Enables returns the flags whose presence can make the guard hold.
func (g Guard) Enables() set.Strings {
	return set.NewStrings(append(append([]string(nil), g.When...), g.WhenAny...)...)
}

// String renders the guard the way it is shown by the graph command.
func (g Guard) String() string {
	var parts []string
	if len(g.When) > 0 {
		parts = append(parts, "when("+strings.Join(g.When, ",")+")")
	}
	if len(g.WhenAny) > 0 {
		parts = append(parts, "when_any("+strings.Join(g.WhenAny, ",")+")")
	}
	if len(g.WhenNot) > 0 {
		parts = append(parts, "when_not("+strings.Join(g.WhenNot, ",")+")")
	}
	if len(parts) == 0 {
		return "always"
	}
	return strings.Join(parts, " ")
}

// Body is the action run when a handler fires.
type Body func(ctx context.Context, sc *Scope) error

// Handler is a single row of the handler table.
type Handler struct {
	Name  string
	Guard Guard
	Kind  Kind

	// Sets and Clears declare the flags the body may mutate.
	Sets   []string
	Clears []string

	Body Body
}

func (h Handler) mayMutate(name string, set bool) bool {
	declared := h.Clears
	if set {
		declared = h.Sets
	}
	for _, f := range declared {
		if f == name {
			return true
		}
	}
	return false
}
