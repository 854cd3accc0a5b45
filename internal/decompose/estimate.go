package decompose

import (
	"time"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// DefaultUnitDuration is the scheduling-hint time cost per complexity unit.
// A placeholder policy knob, not a measured value.
const DefaultUnitDuration = 5 * time.Minute

// Estimate summarizes the resource demands of a subtask set. Non-binding;
// used for scheduling hints only.
type Estimate struct {
	// TotalComplexity is the sum of all subtask complexities.
	TotalComplexity int `json:"total_complexity"`
	// Parallelizable counts subtasks with no dependencies.
	Parallelizable int `json:"parallelizable"`
	// Sequential counts subtasks with at least one dependency.
	Sequential int `json:"sequential"`
	// CriticalPathLength is the longest complexity-weighted path through
	// the dependency DAG.
	CriticalPathLength int `json:"critical_path_length"`
	// Duration is CriticalPathLength times the per-unit duration.
	Duration time.Duration `json:"duration"`
}

// EstimateResources computes the estimate for a subtask set. unit is the
// time cost per complexity unit; zero or negative falls back to
// DefaultUnitDuration.
func EstimateResources(subtasks []*models.Subtask, unit time.Duration) Estimate {
	if unit <= 0 {
		unit = DefaultUnitDuration
	}

	byID := make(map[string]*models.Subtask, len(subtasks))
	for _, st := range subtasks {
		byID[st.ID] = st
	}

	// Memoized longest path: length(t) = complexity(t) + max dependency length.
	memo := make(map[string]int, len(subtasks))
	visiting := make(map[string]bool)

	var pathLength func(id string) int
	pathLength = func(id string) int {
		if length, ok := memo[id]; ok {
			return length
		}
		// Break out of cycles; the scheduler reports them properly.
		if visiting[id] {
			return 0
		}
		visiting[id] = true
		defer delete(visiting, id)

		st, ok := byID[id]
		if !ok {
			return 0
		}

		complexity := st.Complexity
		if complexity < 1 {
			complexity = 1
		}

		longest := 0
		for _, depID := range st.DependsOn {
			if l := pathLength(depID); l > longest {
				longest = l
			}
		}

		memo[id] = complexity + longest
		return memo[id]
	}

	var est Estimate
	for _, st := range subtasks {
		complexity := st.Complexity
		if complexity < 1 {
			complexity = 1
		}
		est.TotalComplexity += complexity

		if len(st.DependsOn) == 0 {
			est.Parallelizable++
		} else {
			est.Sequential++
		}

		if l := pathLength(st.ID); l > est.CriticalPathLength {
			est.CriticalPathLength = l
		}
	}

	est.Duration = time.Duration(est.CriticalPathLength) * unit
	return est
}
