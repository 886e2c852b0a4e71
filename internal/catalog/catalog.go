// Package catalog holds the ordered, densely indexed set of Python modules
// that make up one analysis run.
package catalog

import "slices"

// Module is one source unit. Imports are raw references as extracted from
// the source and may name modules outside the catalog.
type Module struct {
	Name    string
	Imports []string
	index   int
}

// Index is the module's position in the catalog that handed it out.
func (m Module) Index() int {
	return m.index
}

// Entry is a (name, imports) pair produced by discovery.
type Entry struct {
	Name    string
	Imports []string
}

// Catalog owns its modules. Invariant: modules[i].index == i.
// It is not safe for concurrent mutation.
type Catalog struct {
	modules []Module
}

func New() *Catalog {
	return &Catalog{}
}

// FromEntries builds a catalog in entry order.
func FromEntries(entries []Entry) *Catalog {
	c := &Catalog{modules: make([]Module, 0, len(entries))}
	for _, e := range entries {
		c.Append(e.Name, e.Imports)
	}
	return c
}

// Append inserts a module at the end and returns its index.
func (c *Catalog) Append(name string, imports []string) int {
	idx := len(c.modules)
	c.modules = append(c.modules, Module{
		Name:    name,
		Imports: slices.Clone(imports),
		index:   idx,
	})
	return idx
}

// Merge appends every module of other, re-indexed to continue this
// catalog's sequence. other is left empty.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil || other == c {
		return
	}
	for _, m := range other.modules {
		m.index = len(c.modules)
		c.modules = append(c.modules, m)
	}
	other.modules = nil
}

// Resolve returns the index of the first module whose name equals raw
// byte for byte.
func (c *Catalog) Resolve(raw string) (int, bool) {
	for i := range c.modules {
		if c.modules[i].Name == raw {
			return i, true
		}
	}
	return -1, false
}

func (c *Catalog) Len() int {
	return len(c.modules)
}

// Module returns a copy of the module at index i.
func (c *Catalog) Module(i int) Module {
	m := c.modules[i]
	m.Imports = slices.Clone(m.Imports)
	return m
}

// Name is Module(i).Name without copying the import list.
func (c *Catalog) Name(i int) string {
	return c.modules[i].Name
}

// Imports returns the raw imports of module i. The slice must not be
// modified.
func (c *Catalog) Imports(i int) []string {
	return c.modules[i].Imports
}

// Modules returns copies of all modules in index order.
func (c *Catalog) Modules() []Module {
	out := make([]Module, len(c.modules))
	for i := range c.modules {
		out[i] = c.Module(i)
	}
	return out
}

// Names returns module names in index order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.modules))
	for i := range c.modules {
		out[i] = c.modules[i].Name
	}
	return out
}

// Duplicates lists names that occur more than once, in order of their
// second occurrence.
func (c *Catalog) Duplicates() []string {
	seen := make(map[string]int, len(c.modules))
	var dups []string
	for _, m := range c.modules {
		seen[m.Name]++
		if seen[m.Name] == 2 {
			dups = append(dups, m.Name)
		}
	}
	return dups
}
