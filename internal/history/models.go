package history

import "time"

// Run is one recorded analysis of a project.
type Run struct {
	ID          string    `json:"id"`
	ProjectKey  string    `json:"project_key"`
	Timestamp   time.Time `json:"timestamp"`
	CommitHash  string    `json:"commit_hash,omitempty"`
	ModuleCount int       `json:"module_count"`
	EdgeCount   int       `json:"edge_count"`
	// Cycles holds each chain rendered as "a -> b -> a", in detection order.
	Cycles []string `json:"cycles"`
}

// Change compares the cycles of two runs.
type Change struct {
	Introduced []string
	Resolved   []string
}

func (c Change) Empty() bool {
	return len(c.Introduced) == 0 && len(c.Resolved) == 0
}

// Diff reports cycles present in curr but not prev and the reverse. A nil
// prev means every current cycle is new.
func Diff(prev *Run, curr Run) Change {
	before := make(map[string]bool)
	if prev != nil {
		for _, c := range prev.Cycles {
			before[c] = true
		}
	}
	now := make(map[string]bool, len(curr.Cycles))
	for _, c := range curr.Cycles {
		now[c] = true
	}

	var change Change
	for _, c := range curr.Cycles {
		if !before[c] {
			change.Introduced = append(change.Introduced, c)
		}
	}
	if prev != nil {
		for _, c := range prev.Cycles {
			if !now[c] {
				change.Resolved = append(change.Resolved, c)
			}
		}
	}
	return change
}
