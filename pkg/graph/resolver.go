// Package graph resolves the loader dependency graph into a single
// deterministic execution order and partitions that order into priority
// tiers.
//
// Resolution is a depth-first topological sort: a job's dependencies are
// visited before the job itself, the current recursion path is tracked to
// detect cycles, and job names are iterated in sorted order so repeated
// resolutions of the same set always produce the same sequence.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantfabric/batchflow/pkg/job"
)

// CycleError reports a dependency cycle found during resolution.
//
// Path holds the full cycle, starting and ending at the same job name,
// e.g. ["A", "B", "A"].
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// Resolve orders the job set so every job appears after all of its
// dependencies present in the set.
//
// Dependency names that do not resolve to a job in the set are treated as
// already-satisfied leaves and skipped; this keeps job sets loosely coupled
// to loaders that are not yet defined.
//
// Returns a CycleError if any job transitively depends on itself.
func Resolve(specs []job.Spec) ([]job.Spec, error) {
	byName := make(map[string]job.Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make([]job.Spec, 0, len(byName))
	done := make(map[string]bool, len(byName))
	onPath := make(map[string]bool, len(byName))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if done[name] {
			return nil
		}
		if onPath[name] {
			return &CycleError{Path: cyclePath(path, name)}
		}

		onPath[name] = true
		path = append(path, name)

		for _, dep := range byName[name].Dependencies {
			if _, known := byName[dep]; !known {
				// Unknown dependency: treat as satisfied.
				continue
			}
			if err := visit(dep, path); err != nil {
				return err
			}
		}

		onPath[name] = false
		done[name] = true
		resolved = append(resolved, byName[name])
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

// cyclePath trims the recursion path to the cycle itself and closes it,
// turning [X A B] + repeat=A into [A B A].
func cyclePath(path []string, repeat string) []string {
	start := 0
	for i, name := range path {
		if name == repeat {
			start = i
			break
		}
	}
	cycle := append([]string{}, path[start:]...)
	return append(cycle, repeat)
}

// ValidateNames checks the structural invariants resolution relies on:
// unique names and no job naming itself as a direct dependency.
func ValidateNames(specs []job.Spec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("job with empty name (target %q)", s.Target)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate job name: %s", s.Name)
		}
		seen[s.Name] = true

		for _, dep := range s.Dependencies {
			if dep == s.Name {
				return fmt.Errorf("job %s depends on itself", s.Name)
			}
		}
	}
	return nil
}
