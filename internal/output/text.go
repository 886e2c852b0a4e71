// Package output renders detected cycles and the import graph.
package output

import (
	"strings"

	"marui/internal/graph"
)

const NoCyclesMessage = "No circular imports found."

// FormatText renders one arrow chain per line.
func FormatText(cycles []graph.Cycle) string {
	if len(cycles) == 0 {
		return NoCyclesMessage + "\n"
	}

	var b strings.Builder
	for _, c := range cycles {
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	return b.String()
}

// cycleEdges indexes every from->to hop that appears in a cycle.
func cycleEdges(cycles []graph.Cycle) map[string]map[string]bool {
	edges := make(map[string]map[string]bool)
	for _, cycle := range cycles {
		for i := 0; i+1 < len(cycle); i++ {
			from, to := cycle[i], cycle[i+1]
			if edges[from] == nil {
				edges[from] = make(map[string]bool)
			}
			edges[from][to] = true
		}
	}
	return edges
}

func cycleModules(cycles []graph.Cycle) map[string]bool {
	mods := make(map[string]bool)
	for _, cycle := range cycles {
		for _, m := range cycle {
			mods[m] = true
		}
	}
	return mods
}
