package graph

import (
	"fmt"
	"strings"

	"github.com/quantfabric/batchflow/pkg/job"
)

// Tier is one priority bucket of the resolved order.
type Tier struct {
	// Priority identifies the bucket.
	Priority job.Priority

	// Jobs preserves the relative order from the topological sort.
	Jobs []job.Spec
}

// Tiers holds the resolved order partitioned by priority, in execution
// order (critical first). Empty tiers are omitted.
type Tiers struct {
	groups []Tier
}

// Group partitions a resolved order into priority tiers.
//
// Within each tier the relative order from the topological sort is
// preserved, so dependency jobs sharing a tier with their dependents are
// submitted first.
func Group(ordered []job.Spec) *Tiers {
	buckets := make(map[job.Priority][]job.Spec, 4)
	for _, s := range ordered {
		buckets[s.Priority] = append(buckets[s.Priority], s)
	}

	t := &Tiers{}
	for _, p := range job.Priorities() {
		if jobs := buckets[p]; len(jobs) > 0 {
			t.groups = append(t.groups, Tier{Priority: p, Jobs: jobs})
		}
	}
	return t
}

// Ordered returns the non-empty tiers in execution order.
func (t *Tiers) Ordered() []Tier {
	return t.groups
}

// Len returns the total number of jobs across all tiers.
func (t *Tiers) Len() int {
	n := 0
	for _, g := range t.groups {
		n += len(g.Jobs)
	}
	return n
}

// TierOrderError reports dependency edges that cross tiers in the wrong
// direction: the dependency would execute in a strictly later tier than
// its dependent, silently violating the intended ordering.
type TierOrderError struct {
	// Pairs holds "dependent <- dependency" descriptions for every
	// offending edge.
	Pairs []string
}

// Error implements the error interface.
func (e *TierOrderError) Error() string {
	return fmt.Sprintf("dependency scheduled after dependent in %d case(s): %s",
		len(e.Pairs), strings.Join(e.Pairs, "; "))
}

// ValidateTiers rejects job sets where a dependency's tier is not at or
// before its dependent's tier.
//
// Tiers execute strictly in sequence and the runner provides no
// per-dependency completion gate, so an edge from a critical job to a low
// dependency would run the dependency after the dependent. All offending
// edges are accumulated before returning.
func ValidateTiers(specs []job.Spec) error {
	byName := make(map[string]job.Spec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	var pairs []string
	for _, s := range specs {
		for _, dep := range s.Dependencies {
			d, known := byName[dep]
			if !known {
				continue
			}
			if d.Priority.Rank() > s.Priority.Rank() {
				pairs = append(pairs, fmt.Sprintf("%s (%s) <- %s (%s)",
					s.Name, s.Priority, d.Name, d.Priority))
			}
		}
	}

	if len(pairs) > 0 {
		return &TierOrderError{Pairs: pairs}
	}
	return nil
}
