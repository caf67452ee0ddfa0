package pipeline

import (
	"fmt"

	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// ResolveOrder resolves the job dependency graph into execution waves.
// Each wave is a set of jobs whose dependencies are all satisfied by
// earlier waves; jobs within one wave are independent and may run in
// parallel. Returns ErrUnknownDependency for edges to undeclared jobs
// and ErrDependencyCycle if the graph is not a DAG.
//
// Wave membership is deterministic: jobs keep pipeline declaration order
// within their wave.
func ResolveOrder(p *domain.Pipeline) ([][]string, error) {
	names := make(map[string]bool, len(p.Jobs))
	for i := range p.Jobs {
		names[p.Jobs[i].Name] = true
	}

	// In-degree per job, counting only declared dependencies.
	indegree := make(map[string]int, len(p.Jobs))
	dependents := make(map[string][]string, len(p.Jobs))
	for i := range p.Jobs {
		job := &p.Jobs[i]
		indegree[job.Name] = len(job.Needs)
		for _, dep := range job.Needs {
			if !names[dep] {
				return nil, fmt.Errorf("%w: job %q needs %q", slipwayerrors.ErrUnknownDependency, job.Name, dep)
			}
			dependents[dep] = append(dependents[dep], job.Name)
		}
	}

	// Kahn's algorithm, one wave per iteration.
	var waves [][]string
	placed := 0
	for placed < len(p.Jobs) {
		var wave []string
		for i := range p.Jobs {
			name := p.Jobs[i].Name
			if indegree[name] == 0 {
				wave = append(wave, name)
				indegree[name] = -1 // mark placed
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("%w: pipeline %q", slipwayerrors.ErrDependencyCycle, p.Name)
		}
		for _, name := range wave {
			for _, dep := range dependents[name] {
				indegree[dep]--
			}
		}
		placed += len(wave)
		waves = append(waves, wave)
	}

	return waves, nil
}

// FilterWaves restricts execution waves to the given selected job set,
// preserving wave structure. Waves emptied by the filter are dropped.
func FilterWaves(waves [][]string, selected []domain.JobDefinition) [][]string {
	keep := make(map[string]bool, len(selected))
	for i := range selected {
		keep[selected[i].Name] = true
	}

	filtered := make([][]string, 0, len(waves))
	for _, wave := range waves {
		var w []string
		for _, name := range wave {
			if keep[name] {
				w = append(w, name)
			}
		}
		if len(w) > 0 {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
