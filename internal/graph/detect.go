package graph

import (
	"slices"
	"strings"

	"marui/internal/catalog"
)

// Cycle is a closed import chain: first and last names are equal.
// [A, B, A] reads "A imports B imports A".
type Cycle []string

func (c Cycle) String() string {
	return strings.Join(c, " -> ")
}

func (c Cycle) Equal(other Cycle) bool {
	return slices.Equal(c, other)
}

// Modules returns the distinct modules of the chain, without the closing
// repeat.
func (c Cycle) Modules() []string {
	if len(c) == 0 {
		return nil
	}
	return c[:len(c)-1]
}

// FindCycles walks the catalog depth first and reports every cycle closed
// by an edge back onto the active path. Imports are followed in recorded
// order, so the output is deterministic for a given catalog.
func FindCycles(c *catalog.Catalog) []Cycle {
	t := &traversal{
		catalog:  c,
		edges:    Edges(c),
		finished: make([]bool, c.Len()),
	}

	for i := 0; i < c.Len(); i++ {
		if !t.finished[i] {
			t.visit(i)
		}
	}

	return t.cycles
}

type traversal struct {
	catalog  *catalog.Catalog
	edges    [][]int
	path     []int
	finished []bool
	cycles   []Cycle
}

func (t *traversal) visit(v int) {
	t.finished[v] = true
	t.path = append(t.path, v)
	defer func() {
		t.path = t.path[:len(t.path)-1]
	}()

	for _, next := range t.edges[v] {
		if !t.finished[next] {
			t.visit(next)
			continue
		}
		if pos := slices.Index(t.path, next); pos >= 0 {
			t.cycles = append(t.cycles, t.chain(pos))
		}
	}
}

func (t *traversal) chain(start int) Cycle {
	cycle := make(Cycle, 0, len(t.path)-start+1)
	for _, idx := range t.path[start:] {
		cycle = append(cycle, t.catalog.Name(idx))
	}
	return append(cycle, t.catalog.Name(t.path[start]))
}
