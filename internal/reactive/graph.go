// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reactive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Edge links a handler that mutates Flag to a handler whose guard
// depends on it.
type Edge struct {
	From string
	To   string
	Flag string
	Kind Kind
}

// String implements fmt.Stringer.
func (e Edge) String() string {
	return fmt.Sprintf("%-8s %s -> %s [%s]", e.Kind, e.From, e.To, e.Flag)
}

// Graph is the dependency graph of a handler table.
type Graph struct {
	handlers []Handler
	edges    []Edge
}

// NewGraph derives the graph of the given handler table.
//
// An advance edge runs from an Advance handler that sets F to every
// handler with F in When or WhenAny. A reset edge runs from a Reset
// handler that clears F to every handler with F in WhenNot.
func NewGraph(handlers []Handler) *Graph {
	g := &Graph{handlers: handlers}
	for _, from := range handlers {
		for _, to := range handlers {
			switch from.Kind {
			case Advance:
				enables := to.Guard.Enables()
				for _, f := range from.Sets {
					if enables.Contains(f) {
						g.edges = append(g.edges, Edge{From: from.Name, To: to.Name, Flag: f, Kind: Advance})
					}
				}
			case Reset:
				blocked := set.NewStrings(to.Guard.WhenNot...)
				for _, f := range from.Clears {
					if blocked.Contains(f) {
						g.edges = append(g.edges, Edge{From: from.Name, To: to.Name, Flag: f, Kind: Reset})
					}
				}
			}
		}
	}
	return g
}

// Edges returns every edge of the graph.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Triggers returns the flags used by guards that no handler sets. They are
// set from outside the handler table: relation endpoints, config changes
// and hook names.
func (g *Graph) Triggers() set.Strings {
	produced := set.NewStrings()
	used := set.NewStrings()
	for _, h := range g.handlers {
		produced = produced.Union(set.NewStrings(h.Sets...))
		used = used.Union(h.Guard.Enables())
	}
	return used.Difference(produced)
}

// Validate checks the handler table is well formed.
func (g *Graph) Validate() error {
	names := set.NewStrings()
	for _, h := range g.handlers {
		if h.Name == "" {
			return errors.NotValidf("handler with empty name")
		}
		if names.Contains(h.Name) {
			return errors.NotValidf("duplicate handler %q", h.Name)
		}
		names.Add(h.Name)
		if h.Body == nil {
			return errors.NotValidf("handler %q without body", h.Name)
		}
		if h.Kind == Advance && len(h.Clears) > 0 {
			return errors.NotValidf("advance handler %q clearing flags", h.Name)
		}
	}

	triggers := g.Triggers()
	for _, h := range g.handlers {
		if h.Kind != Reset {
			continue
		}
		if h.Guard.Enables().Intersection(triggers).IsEmpty() {
			return errors.NotValidf("reset handler %q not gated by a trigger flag", h.Name)
		}
	}

	if cycle := g.advanceCycle(); cycle != nil {
		return errors.NotValidf("advance cycle %s", strings.Join(cycle, " -> "))
	}
	return nil
}

func (g *Graph) advanceCycle() []string {
	next := make(map[string][]string)
	for _, e := range g.edges {
		if e.Kind == Advance {
			next[e.From] = append(next[e.From], e.To)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int)
	var path []string
	var visit func(string) []string
	visit = func(name string) []string {
		mark[name] = visiting
		path = append(path, name)
		for _, to := range next[name] {
			switch mark[to] {
			case visiting:
				for i, p := range path {
					if p == to {
						return append(append([]string(nil), path[i:]...), to)
					}
				}
			case unvisited:
				if cycle := visit(to); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		mark[name] = done
		return nil
	}
	for _, h := range g.handlers {
		if mark[h.Name] == unvisited {
			if cycle := visit(h.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// String renders the handler table and its edges.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("handlers:\n")
	for _, h := range g.handlers {
		fmt.Fprintf(&b, "  %-8s %s %s\n", h.Kind, h.Name, h.Guard)
	}
	edges := g.Edges()
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Kind < edges[j].Kind
	})
	b.WriteString("edges:\n")
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	if triggers := g.Triggers(); !triggers.IsEmpty() {
		fmt.Fprintf(&b, "triggers:\n  %s\n", strings.Join(triggers.SortedValues(), "\n  "))
	}
	return b.String()
}
