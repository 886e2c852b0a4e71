// Package graph detects import cycles over a module catalog and offers a
// few read-only queries on the resolved import graph.
package graph

import (
	"sort"

	"marui/internal/catalog"
)

// Edges resolves every import of every module against the catalog.
// edges[i] lists the distinct targets of module i in first-import order;
// unresolved imports are dropped.
func Edges(c *catalog.Catalog) [][]int {
	edges := make([][]int, c.Len())
	for i := 0; i < c.Len(); i++ {
		seen := make(map[int]bool)
		for _, raw := range c.Imports(i) {
			target, ok := c.Resolve(raw)
			if !ok || seen[target] {
				continue
			}
			seen[target] = true
			edges[i] = append(edges[i], target)
		}
	}
	return edges
}

// EdgeCount is the number of resolved, distinct edges.
func EdgeCount(edges [][]int) int {
	n := 0
	for _, targets := range edges {
		n += len(targets)
	}
	return n
}

// External lists, per module, the imports that did not resolve.
func External(c *catalog.Catalog) map[string][]string {
	out := make(map[string][]string)
	for i := 0; i < c.Len(); i++ {
		for _, raw := range c.Imports(i) {
			if _, ok := c.Resolve(raw); !ok {
				out[c.Name(i)] = append(out[c.Name(i)], raw)
			}
		}
	}
	return out
}

type ModuleMetrics struct {
	FanIn  int
	FanOut int
}

func ComputeModuleMetrics(c *catalog.Catalog) map[string]ModuleMetrics {
	edges := Edges(c)
	metrics := make(map[string]ModuleMetrics, c.Len())
	for i := range edges {
		m := metrics[c.Name(i)]
		m.FanOut += len(edges[i])
		metrics[c.Name(i)] = m
		for _, to := range edges[i] {
			target := metrics[c.Name(to)]
			target.FanIn++
			metrics[c.Name(to)] = target
		}
	}
	return metrics
}

// FindImportChain returns a shortest chain of imports leading from one
// module to another.
func FindImportChain(c *catalog.Catalog, from, to string) ([]string, bool) {
	start, ok := c.Resolve(from)
	if !ok {
		return nil, false
	}
	goal, ok := c.Resolve(to)
	if !ok {
		return nil, false
	}
	if start == goal {
		return []string{from}, true
	}

	edges := Edges(c)
	queue := []int{start}
	visited := map[int]bool{start: true}
	prev := make(map[int]int)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := append([]int(nil), edges[curr]...)
		sort.Slice(neighbors, func(i, j int) bool {
			return c.Name(neighbors[i]) < c.Name(neighbors[j])
		})

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == goal {
				path := []string{c.Name(goal)}
				for node := goal; node != start; {
					node = prev[node]
					path = append(path, c.Name(node))
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
