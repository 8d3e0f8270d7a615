// Package manifest provides loading and validation of batchflow job-set
// manifests.
//
// A job-set manifest is a YAML or JSON file that amends the built-in job
// set: it can define whole new jobs and apply partial, by-name overrides
// to existing ones. Manifests are validated against a JSON Schema before
// use; the schema enforces strict typing and rejects unknown fields loudly
// rather than ignoring them.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	jobs:
//	  - name: load_sector_etfs
//	    target: loaders/load_sector_etfs.py
//	    priority: medium
//	    timeout: 20m
//	    dependencies: [load_symbols]
//	overrides:
//	  load_prices_daily:
//	    timeout: 45m
//	    retry_budget: 3
package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfabric/batchflow/pkg/job"
)

// Manifest represents a validated job-set manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Jobs defines additional loaders, or replaces built-in ones wholesale
	// when the name matches.
	Jobs []JobDef `json:"jobs,omitempty" yaml:"jobs,omitempty"`

	// Overrides applies partial field updates to jobs by name. Every key
	// must name a job that exists after Jobs are merged.
	Overrides map[string]Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// JobDef is a full loader definition as written in a manifest.
// Durations are Go duration strings ("30m", "1h30m").
type JobDef struct {
	Name                string   `json:"name" yaml:"name"`
	Target              string   `json:"target" yaml:"target"`
	Priority            string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Timeout             string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RetryBudget         int      `json:"retry_budget,omitempty" yaml:"retry_budget,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiredEnv         []string `json:"required_env,omitempty" yaml:"required_env,omitempty"`
	RequiresMarketHours bool     `json:"requires_market_hours,omitempty" yaml:"requires_market_hours,omitempty"`
}

// Override is a partial, by-name update of a job definition. Nil fields
// leave the existing value untouched.
type Override struct {
	Target              *string   `json:"target,omitempty" yaml:"target,omitempty"`
	Priority            *string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Timeout             *string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RetryBudget         *int      `json:"retry_budget,omitempty" yaml:"retry_budget,omitempty"`
	Dependencies        *[]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiredEnv         *[]string `json:"required_env,omitempty" yaml:"required_env,omitempty"`
	RequiresMarketHours *bool     `json:"requires_market_hours,omitempty" yaml:"requires_market_hours,omitempty"`
}

// Defaults applied to job definitions that omit optional fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultTimeout bounds a loader attempt when the definition omits one.
	DefaultTimeout = 30 * time.Minute

	// DefaultPriority is the tier for jobs that do not declare one.
	DefaultPriority = job.PriorityMedium
)

// BuildJobSet merges the built-in defaults with a manifest and returns the
// final job set, sorted by name.
//
// The manifest may be nil, in which case the defaults pass through
// unchanged. Override keys naming unknown jobs are an error: a typo in an
// override must fail loudly, not silently configure nothing.
func BuildJobSet(defaults []job.Spec, m *Manifest) ([]job.Spec, error) {
	byName := make(map[string]job.Spec, len(defaults))
	for _, s := range defaults {
		byName[s.Name] = s
	}

	if m != nil {
		for _, def := range m.Jobs {
			spec, err := def.toSpec()
			if err != nil {
				return nil, fmt.Errorf("job %s: %w", def.Name, err)
			}
			byName[def.Name] = spec
		}

		names := make([]string, 0, len(m.Overrides))
		for name := range m.Overrides {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			spec, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("override references unknown job: %s", name)
			}
			updated, err := m.Overrides[name].apply(spec)
			if err != nil {
				return nil, fmt.Errorf("override for %s: %w", name, err)
			}
			byName[name] = updated
		}
	}

	specs := make([]job.Spec, 0, len(byName))
	for _, spec := range byName {
		if err := validateSpec(spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs, nil
}

// toSpec converts a manifest job definition into a Spec, applying defaults
// for omitted optional fields.
func (d JobDef) toSpec() (job.Spec, error) {
	spec := job.Spec{
		Name:                d.Name,
		Target:              d.Target,
		Priority:            DefaultPriority,
		Timeout:             DefaultTimeout,
		RetryBudget:         d.RetryBudget,
		Dependencies:        d.Dependencies,
		RequiredEnv:         d.RequiredEnv,
		RequiresMarketHours: d.RequiresMarketHours,
	}

	if d.Priority != "" {
		spec.Priority = job.Priority(d.Priority)
	}
	if d.Timeout != "" {
		timeout, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return job.Spec{}, fmt.Errorf("invalid timeout %q: %w", d.Timeout, err)
		}
		spec.Timeout = timeout
	}

	return spec, nil
}

// apply layers the override's set fields onto the spec.
func (o Override) apply(spec job.Spec) (job.Spec, error) {
	if o.Target != nil {
		spec.Target = *o.Target
	}
	if o.Priority != nil {
		spec.Priority = job.Priority(*o.Priority)
	}
	if o.Timeout != nil {
		timeout, err := time.ParseDuration(*o.Timeout)
		if err != nil {
			return job.Spec{}, fmt.Errorf("invalid timeout %q: %w", *o.Timeout, err)
		}
		spec.Timeout = timeout
	}
	if o.RetryBudget != nil {
		spec.RetryBudget = *o.RetryBudget
	}
	if o.Dependencies != nil {
		spec.Dependencies = *o.Dependencies
	}
	if o.RequiredEnv != nil {
		spec.RequiredEnv = *o.RequiredEnv
	}
	if o.RequiresMarketHours != nil {
		spec.RequiresMarketHours = *o.RequiresMarketHours
	}
	return spec, nil
}

// validateSpec checks the invariants a Spec must satisfy before scheduling.
func validateSpec(spec job.Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("job with empty name (target %q)", spec.Target)
	}
	if spec.Target == "" {
		return fmt.Errorf("job %s: target is required", spec.Name)
	}
	if !spec.Priority.Valid() {
		return fmt.Errorf("job %s: unknown priority %q", spec.Name, spec.Priority)
	}
	if spec.Timeout <= 0 {
		return fmt.Errorf("job %s: timeout must be positive", spec.Name)
	}
	if spec.RetryBudget < 0 {
		return fmt.Errorf("job %s: retry budget must be non-negative", spec.Name)
	}
	return nil
}
