package output

import (
	"fmt"
	"strings"
	"unicode"

	"marui/internal/catalog"
	"marui/internal/graph"
)

type MermaidGenerator struct {
	catalog *catalog.Catalog
}

func NewMermaidGenerator(c *catalog.Catalog) *MermaidGenerator {
	return &MermaidGenerator{catalog: c}
}

// Generate renders project modules as a flowchart. External imports are
// left out; cycle edges are drawn red.
func (m *MermaidGenerator) Generate(cycles []graph.Cycle) (string, error) {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	b.WriteString("  classDef cycle fill:#ffe4e1,stroke:#d00,stroke-width:2px\n")

	ids := make([]string, m.catalog.Len())
	used := make(map[string]int)
	for i := 0; i < m.catalog.Len(); i++ {
		id := mermaidID(m.catalog.Name(i))
		if n := used[id]; n > 0 {
			used[id]++
			id = fmt.Sprintf("%s_%d", id, n)
		} else {
			used[id] = 1
		}
		ids[i] = id
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", id, m.catalog.Name(i))
	}

	inCycle := cycleModules(cycles)
	onCycle := cycleEdges(cycles)

	link := 0
	var red []string
	for i, targets := range graph.Edges(m.catalog) {
		from := m.catalog.Name(i)
		for _, t := range targets {
			fmt.Fprintf(&b, "  %s --> %s\n", ids[i], ids[t])
			if onCycle[from][m.catalog.Name(t)] {
				red = append(red, fmt.Sprint(link))
			}
			link++
		}
	}

	for i := 0; i < m.catalog.Len(); i++ {
		if inCycle[m.catalog.Name(i)] {
			fmt.Fprintf(&b, "  class %s cycle\n", ids[i])
		}
	}
	if len(red) > 0 {
		fmt.Fprintf(&b, "  linkStyle %s stroke:#d00,stroke-width:3px\n", strings.Join(red, ","))
	}

	return b.String(), nil
}

func mermaidID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "m"
	}
	return b.String()
}
