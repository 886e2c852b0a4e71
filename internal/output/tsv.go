package output

import (
	"fmt"
	"strings"

	"marui/internal/catalog"
	"marui/internal/graph"
)

type TSVGenerator struct {
	catalog *catalog.Catalog
}

func NewTSVGenerator(c *catalog.Catalog) *TSVGenerator {
	return &TSVGenerator{catalog: c}
}

// Generate lists every raw import, marking whether it resolved inside the
// project.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("From\tTo\tResolved\n")
	for i := 0; i < t.catalog.Len(); i++ {
		from := t.catalog.Name(i)
		for _, raw := range t.catalog.Imports(i) {
			_, ok := t.catalog.Resolve(raw)
			fmt.Fprintf(&buf, "%s\t%s\t%t\n", from, raw, ok)
		}
	}

	return buf.String(), nil
}

func (t *TSVGenerator) GenerateCycles(cycles []graph.Cycle) (string, error) {
	var buf strings.Builder

	buf.WriteString("Cycle\tLength\tChain\n")
	for i, c := range cycles {
		fmt.Fprintf(&buf, "%d\t%d\t%s\n", i+1, len(c.Modules()), c.String())
	}

	return buf.String(), nil
}
