package output

import (
	"fmt"
	"sort"
	"strings"

	"marui/internal/catalog"
	"marui/internal/graph"
)

type DOTGenerator struct {
	catalog *catalog.Catalog
	metrics map[string]graph.ModuleMetrics
}

func NewDOTGenerator(c *catalog.Catalog) *DOTGenerator {
	return &DOTGenerator{catalog: c}
}

func (d *DOTGenerator) SetModuleMetrics(metrics map[string]graph.ModuleMetrics) {
	d.metrics = metrics
}

func (d *DOTGenerator) Generate(cycles []graph.Cycle) (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.5;\n")
	buf.WriteString("  nodesep=0.6;\n")
	buf.WriteString("  overlap=false;\n\n")

	onCycle := cycleEdges(cycles)
	inCycle := cycleModules(cycles)
	edges := graph.Edges(d.catalog)

	buf.WriteString("  subgraph cluster_internal {\n")
	buf.WriteString("    label=\"Project Modules\";\n")
	buf.WriteString("    style=filled;\n")
	buf.WriteString("    color=\"whitesmoke\";\n")
	buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
	for i := 0; i < d.catalog.Len(); i++ {
		name := d.catalog.Name(i)
		label := name
		if m, ok := d.metrics[name]; ok {
			label = fmt.Sprintf("%s\\n(in %d, out %d)", name, m.FanIn, m.FanOut)
		}
		if inCycle[name] {
			fmt.Fprintf(&buf, "    %q [label=\"%s\", fillcolor=\"mistyrose\", color=\"red\", penwidth=2.0];\n", name, label)
		} else {
			fmt.Fprintf(&buf, "    %q [label=\"%s\", color=\"darkslategrey\"];\n", name, label)
		}
	}
	buf.WriteString("  }\n\n")

	external := graph.External(d.catalog)
	extNames := make(map[string]bool)
	for _, targets := range external {
		for _, t := range targets {
			extNames[t] = true
		}
	}
	names := make([]string, 0, len(extNames))
	for n := range extNames {
		names = append(names, n)
	}
	sort.Strings(names)

	buf.WriteString("  // External and standard library\n")
	buf.WriteString("  node [fillcolor=\"gainsboro\", style=\"rounded,filled\", color=\"grey\"];\n")
	for _, n := range names {
		fmt.Fprintf(&buf, "  %q;\n", n)
	}
	buf.WriteString("\n")

	for i, targets := range edges {
		from := d.catalog.Name(i)
		for _, t := range targets {
			to := d.catalog.Name(t)
			if onCycle[from][to] {
				fmt.Fprintf(&buf, "  %q -> %q [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to)
			} else {
				fmt.Fprintf(&buf, "  %q -> %q [color=\"forestgreen\", penwidth=1.8];\n", from, to)
			}
		}
	}
	for i := 0; i < d.catalog.Len(); i++ {
		from := d.catalog.Name(i)
		seen := make(map[string]bool)
		for _, to := range external[from] {
			if seen[to] {
				continue
			}
			seen[to] = true
			fmt.Fprintf(&buf, "  %q -> %q [color=\"grey\", style=dashed];\n", from, to)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
